package backend

import "encoding/json"

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResult is the identity the backend vouched for.
type LoginResult struct {
	Email    string
	Username string
	Role     string
	Token    string
}

type loginResponse struct {
	Role  string `json:"role"`
	Token string `json:"token"`
	User  struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	} `json:"user"`
}

// AvailabilityRecord is the flat wire shape of a doctor's working hours.
// Both schedule variants share it; unused fields travel as empty strings.
type AvailabilityRecord struct {
	Days           string `json:"days"`
	Time           string `json:"time"`
	Sunday         string `json:"sunday"`
	MondayThursday string `json:"mondayThursday"`
	Tuesday        string `json:"tuesday"`
}

type DoctorRecord struct {
	ID           string             `json:"id,omitempty"`
	Name         string             `json:"name"`
	Speciality   string             `json:"speciality"`
	Hospital     string             `json:"hospital"`
	ProfilePhoto string             `json:"profilePhoto,omitempty"`
	Availability AvailabilityRecord `json:"availability"`
}

type AppointmentRecord struct {
	ID               string `json:"id,omitempty"`
	PatientEmail     string `json:"patientEmail"`
	PatientName      string `json:"patientName"`
	DoctorID         string `json:"doctorId"`
	DoctorName       string `json:"doctorName"`
	DoctorSpeciality string `json:"doctorSpeciality"`
	DoctorHospital   string `json:"doctorHospital"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Issue            string `json:"issue"`
}

// UnmarshalJSON accepts the backend's Mongo style "_id" as the record id.
func (a *AppointmentRecord) UnmarshalJSON(data []byte) error {
	type plain AppointmentRecord
	var wire struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = AppointmentRecord(wire.plain)
	if a.ID == "" {
		a.ID = wire.MongoID
	}
	return nil
}

type ChatReply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent"`
}

// Audio is one recorded voice message.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}
