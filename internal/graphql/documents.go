package graphql

const bookFields = `
      id
      title
      author
      publishedYear
      genre
      description
      isbn`

const authFields = `
      access_token
      user {
        id
        email
        name
      }`

// Book documents.
const (
	GetBooks = `query GetBooks {
    books {` + bookFields + `
    }
  }`

	GetBook = `query GetBook($id: String!) {
    book(id: $id) {` + bookFields + `
    }
  }`

	CreateBook = `mutation CreateBook($input: CreateBookInput!) {
    createBook(input: $input) {` + bookFields + `
    }
  }`

	UpdateBook = `mutation UpdateBook($id: String!, $input: UpdateBookInput!) {
    updateBook(id: $id, input: $input) {` + bookFields + `
    }
  }`

	DeleteBook = `mutation DeleteBook($id: String!) {
    deleteBook(id: $id) {
      message
    }
  }`
)

// Auth documents.
const (
	SignUp = `mutation SignUp($input: SignUpInput!) {
    signUp(input: $input) {` + authFields + `
    }
  }`

	SignIn = `mutation SignIn($input: SignInInput!) {
    signIn(input: $input) {` + authFields + `
    }
  }`

	Logout = `mutation Logout {
    logout {
      message
    }
  }`
)
