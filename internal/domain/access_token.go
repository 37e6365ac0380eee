package domain

// AccessToken is one row of the credential sheet. A nil date carries no constraint.
type AccessToken struct {
	Token     string
	OwnerName string
	ValidFrom *string
	ValidTo   *string
	Comment   string
}
