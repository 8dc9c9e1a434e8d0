package doctor

import (
	"html/template"
	"strings"
	"unicode"

	"github.com/spark200410/consultancy/internal/backend"
)

const (
	KindRegular = "regular"
	KindCustom  = "custom"
)

// Availability is either Regular or Custom.
type Availability interface {
	Kind() string
	Lines() []Line
	record() backend.AvailabilityRecord
}

// Line is one rendered row of a schedule, e.g. "Sunday: 10:00 - 13:00".
type Line struct {
	Label string
	Value string
}

// Regular is a weekly pattern with an optional Sunday override.
type Regular struct {
	Days   string
	Time   string
	Sunday string
}

func (Regular) Kind() string { return KindRegular }

func (a Regular) Lines() []Line {
	var lines []Line
	if a.Days != "" {
		lines = append(lines, Line{Label: a.Days, Value: a.Time})
	}
	if a.Sunday != "" {
		lines = append(lines, Line{Label: "Sunday", Value: a.Sunday})
	}
	return lines
}

func (a Regular) record() backend.AvailabilityRecord {
	return backend.AvailabilityRecord{Days: a.Days, Time: a.Time, Sunday: a.Sunday}
}

// Custom lists hours per day group.
type Custom struct {
	MondayThursday string
	Tuesday        string
}

func (Custom) Kind() string { return KindCustom }

func (a Custom) Lines() []Line {
	var lines []Line
	if a.MondayThursday != "" {
		lines = append(lines, Line{Label: "Monday & Thursday", Value: a.MondayThursday})
	}
	if a.Tuesday != "" {
		lines = append(lines, Line{Label: "Tuesday", Value: a.Tuesday})
	}
	return lines
}

func (a Custom) record() backend.AvailabilityRecord {
	return backend.AvailabilityRecord{MondayThursday: a.MondayThursday, Tuesday: a.Tuesday}
}

func availabilityFromRecord(r backend.AvailabilityRecord) Availability {
	if r.Days == "" && (r.MondayThursday != "" || r.Tuesday != "") {
		return Custom{MondayThursday: r.MondayThursday, Tuesday: r.Tuesday}
	}
	return Regular{Days: r.Days, Time: r.Time, Sunday: r.Sunday}
}

type Doctor struct {
	ID           string
	Name         string
	Speciality   string
	Hospital     string
	ProfilePhoto string
	Availability Availability
}

func FromRecord(r backend.DoctorRecord) Doctor {
	return Doctor{
		ID:           r.ID,
		Name:         r.Name,
		Speciality:   r.Speciality,
		Hospital:     r.Hospital,
		ProfilePhoto: r.ProfilePhoto,
		Availability: availabilityFromRecord(r.Availability),
	}
}

// Record is the wire form. The variant that is not selected travels as
// empty strings.
func (d Doctor) Record() backend.DoctorRecord {
	avail := d.Availability
	if avail == nil {
		avail = Regular{}
	}
	return backend.DoctorRecord{
		ID:           d.ID,
		Name:         d.Name,
		Speciality:   d.Speciality,
		Hospital:     d.Hospital,
		ProfilePhoto: d.ProfilePhoto,
		Availability: avail.record(),
	}
}

// PhotoSrc is the profile photo as an img src. html/template would replace a
// data URL with "#ZgotmplZ", so image data URLs and http(s) links are passed
// through as trusted and anything else renders no photo.
func (d Doctor) PhotoSrc() template.URL {
	p := strings.TrimSpace(d.ProfilePhoto)
	lower := strings.ToLower(p)
	switch {
	case strings.HasPrefix(lower, "data:image/"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "http://"):
		return template.URL(p)
	}
	return ""
}

// Initials of the name without the "Dr." title, shown when there is no photo.
func (d Doctor) Initials() string {
	var out []rune
	for _, w := range strings.Fields(d.Name) {
		if strings.EqualFold(strings.TrimSuffix(w, "."), "dr") {
			continue
		}
		r := []rune(w)[0]
		if unicode.IsLetter(r) {
			out = append(out, unicode.ToUpper(r))
		}
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

func fromRecords(records []backend.DoctorRecord) []Doctor {
	doctors := make([]Doctor, 0, len(records))
	for _, r := range records {
		doctors = append(doctors, FromRecord(r))
	}
	return doctors
}

func toRecords(doctors []Doctor) []backend.DoctorRecord {
	records := make([]backend.DoctorRecord, 0, len(doctors))
	for _, d := range doctors {
		records = append(records, d.Record())
	}
	return records
}
