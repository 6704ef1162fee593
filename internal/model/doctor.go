package model

import "time"

type Doctor struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Speciality   string
	Degree       string
	Experience   string
	About        string
	Fees         int64
	Address      string
	Image        string
	Available    bool
	CreatedAt    time.Time
}

// DoctorSummary is the display data snapshotted onto an appointment at
// booking time. Later profile edits do not touch existing appointments.
type DoctorSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	Degree     string `json:"degree"`
	Fees       int64  `json:"fees"`
	Address    string `json:"address"`
	Image      string `json:"image"`
}

func (d Doctor) Summary() DoctorSummary {
	return DoctorSummary{
		ID:         d.ID,
		Name:       d.Name,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		Fees:       d.Fees,
		Address:    d.Address,
		Image:      d.Image,
	}
}
