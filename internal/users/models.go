package users

// User is the profile returned by the login endpoint and cached on the device.
type User struct {
	ID          string `json:"id" db:"id"`
	Username    string `json:"username" db:"username"`
	Email       string `json:"email" db:"email"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
}

// Account is a User plus its credential. It never leaves the backend.
type Account struct {
	User
	PasswordHash string `json:"-" db:"password_hash"`
}
