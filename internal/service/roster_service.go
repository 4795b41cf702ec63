package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-api/internal/models"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/export"
)

type rosterRepository interface {
	RosterByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterExport is a rendered roster file ready to stream.
type RosterExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// RosterExportService renders course rosters as CSV or PDF downloads.
type RosterExportService struct {
	enrollments rosterRepository
	courses     courseFinder
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewRosterExportService constructs RosterExportService.
func NewRosterExportService(enrollments rosterRepository, courses courseFinder, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *RosterExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterExportService{enrollments: enrollments, courses: courses, csv: csv, pdf: pdf, logger: logger}
}

var rosterHeaders = []string{"Student ID", "Student Name", "Status", "Waitlist Position", "Enrolled At", "Grade"}

// Export renders the course roster in the requested format. Active
// enrollments come first, then the waitlist in position order.
func (s *RosterExportService) Export(ctx context.Context, courseID, format string) (*RosterExport, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	roster, err := s.enrollments.RosterByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(roster))}
	for _, entry := range roster {
		row := map[string]string{
			"Student ID":   entry.StudentID,
			"Student Name": entry.StudentName,
			"Status":       string(entry.Status),
			"Enrolled At":  entry.EnrolledAt.UTC().Format(time.RFC3339),
		}
		if entry.WaitlistPosition != nil {
			row["Waitlist Position"] = strconv.Itoa(*entry.WaitlistPosition)
		}
		if entry.Grade != nil {
			row["Grade"] = *entry.Grade
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	stamp := time.Now().UTC().Format("20060102")
	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RosterExport{
			Filename:    fmt.Sprintf("roster_%s_%s.csv", course.Code, stamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case "pdf":
		title := fmt.Sprintf("Roster %s - %s", course.Code, course.Name)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RosterExport{
			Filename:    fmt.Sprintf("roster_%s_%s.pdf", course.Code, stamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
