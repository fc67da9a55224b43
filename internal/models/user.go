package models

// User is the profile document stored under users/{uid}. The repository keys
// the document by uid and the body repeats it.
type User struct {
	UID      string `bson:"uid" json:"uid"`
	Email    string `bson:"email" json:"email"`
	Username string `bson:"username" json:"username"`
}
