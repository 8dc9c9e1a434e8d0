package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/config"
	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/logging"
)

const photoLimit = 64 << 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	logger.Info().Str("backend", cfg.BackendBaseURL).Msg("seed starting")

	client, err := backend.New(backend.Options{
		BaseURL:   cfg.BackendBaseURL,
		Timeout:   cfg.BackendTimeout,
		JWTSecret: cfg.BackendJWTSecret,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logger.Fatal().Err(err).Msg("backend unreachable")
	}

	gofakeit.Seed(time.Now().UnixNano())

	ctx := backend.WithCredential(context.Background(), backend.Credential{Email: cfg.ServiceEmail, Role: "admin"})
	dir := doctor.NewDirectory(client, nil, audit.NewLogRecorder(logger), logger)

	if err := seedDoctors(ctx, dir, cfg.ServiceEmail, getInt("SEED_DOCTORS", 25), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(ctx, client, getInt("SEED_PATIENTS", 50), getEnv("SEED_PASSWORD", "password123"), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, dir *doctor.Directory, actor string, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	specialities := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	for i := 0; i < count; i++ {
		photo, err := avatar()
		if err != nil {
			return err
		}

		form := doctor.AddForm{
			Name:         "Dr. " + gofakeit.Name(),
			Hospital:     gofakeit.City() + " " + gofakeit.RandomString([]string{"General Hospital", "Medical Center", "Clinic"}),
			Speciality:   specialities[gofakeit.Number(0, len(specialities)-1)],
			PhotoDataURL: photo,
		}
		if gofakeit.Bool() {
			form.AvailabilityType = doctor.KindRegular
			form.Days = "Monday - Saturday"
			form.Time = fmt.Sprintf("%02d:00 - %02d:00", gofakeit.Number(8, 11), gofakeit.Number(16, 20))
			if gofakeit.Bool() {
				form.Sunday = "10:00 - 13:00"
			}
		} else {
			form.AvailabilityType = doctor.KindCustom
			form.MondayThursday = fmt.Sprintf("%02d:00 - %02d:00", gofakeit.Number(8, 10), gofakeit.Number(12, 14))
			form.Tuesday = fmt.Sprintf("%02d:00 - %02d:00", gofakeit.Number(14, 15), gofakeit.Number(17, 19))
		}

		doc, err := dir.Add(ctx, form, actor)
		if err != nil {
			return fmt.Errorf("add %q: %w", form.Name, err)
		}
		logger.Debug().Str("id", doc.ID).Str("name", doc.Name).Msg("doctor added")
	}

	logger.Info().Int("count", count).Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, client *backend.Client, count int, password string, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	skipped := 0
	for i := 0; i < count; i++ {
		err := client.Register(ctx, backend.RegisterRequest{
			Username: gofakeit.Username(),
			Email:    gofakeit.Email(),
			Password: password,
			Role:     "user",
		})
		switch backend.KindOf(err) {
		case "":
		case backend.KindConflict, backend.KindValidation:
			// gofakeit repeats itself now and then
			skipped++
		default:
			return err
		}

		if (i+1)%10 == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}

	logger.Info().Int("count", count-skipped).Int("skipped", skipped).Msg("patients seeded")
	return nil
}

// avatar renders a small flat colour square, enough for the list cards.
func avatar() (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	c := color.RGBA{R: uint8(gofakeit.Uint8()), G: uint8(gofakeit.Uint8()), B: uint8(gofakeit.Uint8()), A: 255}
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}
	return doctor.PhotoDataURL(&buf, photoLimit)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
