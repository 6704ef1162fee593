package model

import "time"

type Patient struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Address      string
	Gender       string
	BirthDate    string
	Image        string
	CreatedAt    time.Time
}

// PatientSummary is the display data snapshotted onto an appointment at
// booking time.
type PatientSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
	Image     string `json:"image"`
}

func (p Patient) Summary() PatientSummary {
	return PatientSummary{
		ID:        p.ID,
		Name:      p.Name,
		Phone:     p.Phone,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
		Image:     p.Image,
	}
}
