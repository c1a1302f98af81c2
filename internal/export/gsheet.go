package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/app"
	"github.com/campuspointe/pointage/internal/models"
)

// GSheetExporter pushes the day's reconciliation summaries into the
// spreadsheets the scolarité office actually reads.
type GSheetExporter struct {
	config        *app.Config
	service       *app.Service
	scheduler     *gocron.Scheduler
	sheetsService *sheets.Service
}

func NewGSheetExporter(service *app.Service) (*GSheetExporter, error) {
	ctx := context.Background()
	scheduler := gocron.NewScheduler(time.Local)

	for campus, configs := range service.Config.GSheet {
		for _, cfg := range configs {
			svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
			if err != nil {
				return nil, fmt.Errorf("failed to create sheets service: %w", err)
			}

			exporter := &GSheetExporter{
				config:        service.Config,
				service:       service,
				scheduler:     scheduler,
				sheetsService: svc,
			}

			cfg := cfg
			campus := campus
			_, err = scheduler.Cron(cfg.Schedule).Do(func() {
				if err := exporter.ExportDay(campus, &cfg, time.Now().Format(models.DateLayout)); err != nil {
					logger.Error.Printf("Export failed for %s: %v", campus, err)
				}
			})
			if err != nil {
				return nil, fmt.Errorf("failed to schedule export: %w", err)
			}
		}
	}

	scheduler.StartAsync()
	return nil, nil
}

// ExportDay reconciles every registered session for the date and appends
// one row per verdict plus a summary row per session.
func (e *GSheetExporter) ExportDay(campus string, cfg *app.GSheetConfig, date string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	batch, err := e.service.ReconcileDate(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to reconcile %s: %w", date, err)
	}

	lateCounts := e.config.Attendance.LateCountsAsPresent

	var rows [][]interface{}
	for _, res := range batch.Results {
		for _, v := range res.Verdicts {
			overridden := ""
			if v.ManualOverride {
				overridden = "manuel"
			}
			punchTime := ""
			if v.PunchIn != nil {
				punchTime = v.PunchIn.Normalized.Format(e.config.Display.TimestampFormat)
			}
			rows = append(rows, []interface{}{
				date, res.SessionType, res.SessionID,
				v.SubjectID, v.SubjectName, string(v.Status),
				punchTime, v.DeviceName, overridden,
			})
		}
		rows = append(rows, []interface{}{
			date, res.SessionType, res.SessionID,
			"", "TOTAL",
			fmt.Sprintf("presents=%d absents=%d", res.Summary.Presents(lateCounts), res.Summary.Absents(lateCounts)),
			"", "", "",
		})
	}
	for _, se := range batch.Errors {
		rows = append(rows, []interface{}{
			date, se.SessionType, se.SessionID, "", "ERREUR", se.Reason, "", "", "",
		})
	}

	if len(rows) == 0 {
		logger.Info.Printf("Nothing to export for %s on %s", campus, date)
		return nil
	}

	_, err = e.sheetsService.Spreadsheets.Values.Append(
		cfg.SpreadsheetID,
		fmt.Sprintf("%s!A:I", cfg.SheetName),
		&sheets.ValueRange{Values: rows},
	).ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("failed to append rows: %w", err)
	}

	logger.Info.Printf("Exported %d rows for %s on %s (batch %s)", len(rows), campus, date, batch.RunID)
	return nil
}
