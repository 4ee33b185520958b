package repository

import (
	"github.com/allisson/piivault/internal/fieldcrypt/domain"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
	userDomain "github.com/allisson/piivault/internal/user/domain"
)

// Stored field paths of the users collection.
const (
	pathEmail          = "email"
	pathPhone          = "phone"
	pathRecoveryEmails = "recoveryEmails"
	pathNationalID     = "profile.nationalId"
	pathAddress        = "profile.address"
)

type profileDocument struct {
	NationalID     string `json:"nationalId,omitempty"`
	NationalIDHash string `json:"nationalIdHash,omitempty"`
	Address        string `json:"address,omitempty"`
}

// userDocument is the stored shape of a user.
type userDocument struct {
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	EmailHash      string          `json:"emailHash,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	PhoneHash      string          `json:"phoneHash,omitempty"`
	RecoveryEmails []string        `json:"recoveryEmails,omitempty"`
	Profile        profileDocument `json:"profile"`
	Password       string          `json:"password"`
}

// UserSpec lists the encrypted fields and blind indexes of the users collection.
var UserSpec = schema.Spec{
	Encrypted: []schema.FieldPath{
		schema.StringField(pathEmail),
		schema.StringField(pathPhone),
		schema.StringArrayField(pathRecoveryEmails),
		schema.StringField(pathNationalID),
		schema.StringField(pathAddress),
	},
	Hashes: []schema.HashSpec{
		{Source: pathEmail, Target: "emailHash", Normalize: domain.NormalizeEmail},
		{Source: pathPhone, Target: "phoneHash", Normalize: domain.NormalizePhone},
		{Source: pathNationalID, Target: "profile.nationalIdHash", Normalize: domain.NormalizeIdentifier},
	},
}

// Register registers the users collection with registry.
func Register(registry *schema.Registry) (*schema.Binding, error) {
	return registry.Register(userDomain.Collection, userDocument{}, UserSpec)
}

func toDocument(u *userDomain.User) userDocument {
	return userDocument{
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		RecoveryEmails: u.RecoveryEmails,
		Profile: profileDocument{
			NationalID: u.Profile.NationalID,
			Address:    u.Profile.Address,
		},
		Password: u.Password,
	}
}

func fromDocument(id string, d userDocument) *userDomain.User {
	return &userDomain.User{
		ID:             id,
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		RecoveryEmails: d.RecoveryEmails,
		Profile: userDomain.Profile{
			NationalID: d.Profile.NationalID,
			Address:    d.Profile.Address,
		},
		Password: d.Password,
	}
}
