package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/backend"
)

var ErrNotFound = errors.New("doctor not found")

const sharedFetchTimeout = 30 * time.Second

// Backend is the part of the booking backend the directory needs.
type Backend interface {
	ListDoctors(ctx context.Context) ([]backend.DoctorRecord, error)
	AddDoctor(ctx context.Context, d backend.DoctorRecord) (string, error)
	DeleteDoctor(ctx context.Context, id string) error
}

// Directory is the single read/write path for doctors. Concurrent reads
// share one backend call and mutations drop the cached list.
type Directory struct {
	backend Backend
	cache   Cache
	audit   audit.Recorder
	logger  zerolog.Logger
	group   singleflight.Group
}

func NewDirectory(b Backend, cache Cache, rec audit.Recorder, logger zerolog.Logger) *Directory {
	if cache == nil {
		cache = NopCache{}
	}
	if rec == nil {
		rec = audit.Nop()
	}
	return &Directory{backend: b, cache: cache, audit: rec, logger: logger}
}

func (d *Directory) List(ctx context.Context) ([]Doctor, error) {
	if records, ok := d.cache.Get(ctx); ok {
		return fromRecords(records), nil
	}

	// keeps the first caller's credential, not its cancellation
	ch := d.group.DoChan("doctors", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return d.fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list doctors: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return fromRecords(res.Val.([]backend.DoctorRecord)), nil
	}
}

// Refresh reloads the list from the backend and replaces the cached copy.
func (d *Directory) Refresh(ctx context.Context) (int, error) {
	records, err := d.fetch(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (d *Directory) fetch(ctx context.Context) ([]backend.DoctorRecord, error) {
	records, err := d.backend.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	d.cache.Set(ctx, records)
	return records, nil
}

func (d *Directory) Get(ctx context.Context, id string) (Doctor, error) {
	doctors, err := d.List(ctx)
	if err != nil {
		return Doctor{}, err
	}
	for _, doc := range doctors {
		if doc.ID == id {
			return doc, nil
		}
	}
	return Doctor{}, ErrNotFound
}

// Add validates the form and creates the doctor.
func (d *Directory) Add(ctx context.Context, form AddForm, actor string) (Doctor, error) {
	if err := form.Validate(); err != nil {
		return Doctor{}, err
	}

	doc := form.Doctor()
	id, err := d.backend.AddDoctor(ctx, doc.Record())
	if err != nil {
		return Doctor{}, fmt.Errorf("add doctor: %w", err)
	}
	doc.ID = id
	d.cache.Invalidate(ctx)

	d.audit.Record(ctx, audit.Event{
		Type:    audit.EventDoctorAdded,
		Subject: id,
		Actor:   actor,
		Payload: map[string]any{
			"name":         doc.Name,
			"speciality":   doc.Speciality,
			"hospital":     doc.Hospital,
			"availability": doc.Availability.Kind(),
		},
	})
	return doc, nil
}

func (d *Directory) Delete(ctx context.Context, id, actor string) error {
	if id == "" {
		return ErrNotFound
	}
	if err := d.backend.DeleteDoctor(ctx, id); err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	d.cache.Invalidate(ctx)

	d.audit.Record(ctx, audit.Event{
		Type:    audit.EventDoctorDeleted,
		Subject: id,
		Actor:   actor,
	})
	return nil
}

// AddFailureMessage is the text shown when adding a doctor fails.
func AddFailureMessage(err error) string {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if msg := backend.MessageOf(err); msg != "" {
		return msg
	}
	return MsgAddFailed
}

// LoadFailureMessage is the text shown when the list cannot be loaded.
func LoadFailureMessage(err error) string {
	if msg := backend.MessageOf(err); msg != "" {
		return msg
	}
	if backend.KindOf(err) == backend.KindTransport {
		return "Could not reach the booking service. Please try again."
	}
	return "Failed to fetch doctors"
}

// DeleteFailureMessage is the inline text shown when a delete fails.
func DeleteFailureMessage(err error) string {
	if msg := backend.MessageOf(err); msg != "" {
		return msg
	}
	return "Failed to delete doctor"
}
