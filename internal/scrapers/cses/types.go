package cses

import (
	"errors"
	"fmt"
)

var ErrCredentialCount = errors.New("every username needs exactly one password")

type Credential struct {
	Username string
	Password string
}

// PairCredentials zips usernames and passwords by index.
func PairCredentials(usernames, passwords []string) ([]Credential, error) {
	if len(usernames) != len(passwords) {
		return nil, fmt.Errorf(
			"%w (%d usernames, %d passwords)",
			ErrCredentialCount,
			len(usernames),
			len(passwords),
		)
	}
	creds := make([]Credential, len(usernames))
	for i := range usernames {
		creds[i] = Credential{
			Username: usernames[i],
			Password: passwords[i],
		}
	}
	return creds, nil
}

// Detail is the profile summary of one user, every value is the verbatim
// text of its table cell.
type Detail struct {
	Name            string `json:"Name"`
	Country         string `json:"Country"`
	SubmissionCount string `json:"Submission_Count"`
	FirstSubmission string `json:"First_Submission"`
	LastSubmission  string `json:"Last_Submission"`
}

// FieldNames are the output names of the Detail fields in table row order.
var FieldNames = []string{
	"Name",
	"Country",
	"Submission_Count",
	"First_Submission",
	"Last_Submission",
}

// Values returns the fields of d in the order of FieldNames.
func (d Detail) Values() []string {
	return []string{
		d.Name,
		d.Country,
		d.SubmissionCount,
		d.FirstSubmission,
		d.LastSubmission,
	}
}

func detailFromValues(values []string) Detail {
	return Detail{
		Name:            values[0],
		Country:         values[1],
		SubmissionCount: values[2],
		FirstSubmission: values[3],
		LastSubmission:  values[4],
	}
}

// Result maps usernames to their scraped details, a username is only
// present if every step for it succeeded.
type Result map[string]Detail
