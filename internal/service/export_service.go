package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
	"github.com/noah-isme/campus-schedule-api/pkg/export"
)

var exportHeaders = []string{"Day", "Time", "Subject", "Teacher", "Group", "Location"}

// ExportFile is a rendered schedule ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders grouped schedules as CSV or PDF documents.
type ExportService struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{logger: logger, now: time.Now}
}

// Render turns week into a document named after owner in the requested format.
func (s *ExportService) Render(week models.WeekSchedule, owner, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
		}
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Weekly schedule: %s", owner),
		Headers: exportHeaders,
		Rows:    ScheduleRows(week),
	}
	content, err := export.NewRenderer(format).Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule export")
	}

	s.logger.Debug("schedule exported", zap.String("format", string(format)), zap.Int("rows", len(table.Rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("schedule-%s-%s.%s", slug(owner), s.now().Format("20060102"), format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

// ScheduleRows flattens a week into table rows, Monday first.
func ScheduleRows(week models.WeekSchedule) [][]string {
	rows := [][]string{}
	for day := 1; day <= 7; day++ {
		for _, entry := range week[day] {
			rows = append(rows, []string{
				DayName(day),
				entry.FormattedTime,
				entry.SubjectName,
				entry.TeacherName,
				entry.GroupName,
				entry.Location,
			})
		}
	}
	return rows
}

func slug(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "export"
	}
	return out
}
