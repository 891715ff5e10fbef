// internal/report/csv.go
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
)

// CSVGenerator генератор CSV отчётов
type CSVGenerator struct {
	BaseGenerator
}

// NewCSVGenerator создаёт новый генератор
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Format возвращает формат генератора
func (g *CSVGenerator) Format() Format {
	return FormatCSV
}

// csvWriter обёртка для отслеживания ошибок
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

func (cw *csvWriter) Error() error {
	return cw.err
}

// Generate генерирует CSV отчёт
func (g *CSVGenerator) Generate(ctx context.Context, data *ReportData) ([]byte, error) {
	var buf bytes.Buffer
	cw := &csvWriter{w: csv.NewWriter(&buf)}

	cw.Write([]string{"# " + g.Title(data)})
	cw.Write([]string{"Generated", g.FormatTime(data.GeneratedAt)})
	cw.Write([]string{""})

	cw.Write([]string{"Delivery"})
	cw.Write([]string{"Tracking Number", data.Delivery.TrackingNumber})
	cw.Write([]string{"Status", string(data.Delivery.Status)})
	cw.Write([]string{"Customer", data.Customer.Name})
	cw.Write([]string{"Scheduled Delivery", g.FormatTime(data.Delivery.ScheduledDelivery)})
	cw.Write([]string{"Checks Performed", fmt.Sprintf("%d", data.Delivery.ChecksPerformed)})
	cw.Write([]string{""})

	cw.Write([]string{"Route"})
	cw.Write([]string{"Origin", data.Route.OriginAddress})
	cw.Write([]string{"Destination", data.Route.DestinationAddress})
	cw.Write([]string{"Distance (m)", fmt.Sprintf("%d", data.Route.DistanceMeters)})
	cw.Write([]string{"Normal Duration (s)", fmt.Sprintf("%d", data.Route.NormalDurationSec)})
	cw.Write([]string{"Current Delay (min)", fmt.Sprintf("%d", data.Route.DelayMinutes())})
	cw.Write([]string{""})

	if len(data.Snapshots) > 0 {
		cw.Write([]string{"Traffic Snapshots"})
		cw.Write([]string{"Time", "Condition", "Delay (min)", "Severity", "Incident", "Description"})
		for _, snapshot := range data.Snapshots {
			cw.Write([]string{
				g.FormatTime(snapshot.SnapshotAt),
				string(snapshot.TrafficCondition),
				fmt.Sprintf("%d", snapshot.DelayMinutes),
				string(snapshot.Severity),
				string(snapshot.IncidentType),
				snapshot.Description,
			})
		}
		cw.Write([]string{""})
	}

	if len(data.Notifications) > 0 {
		cw.Write([]string{"Notifications"})
		cw.Write([]string{"Time", "Channel", "Recipient", "Status", "Delay at Send (min)", "Error"})
		for _, notification := range data.Notifications {
			cw.Write([]string{
				g.FormatOptionalTime(notification.SentAt),
				string(notification.Channel),
				notification.Recipient,
				string(notification.Status),
				fmt.Sprintf("%d", notification.DelayMinutesAtSend),
				notification.ErrorMessage,
			})
		}
		cw.Write([]string{""})
	}

	if len(data.Executions) > 0 {
		cw.Write([]string{"Workflow Executions"})
		cw.Write([]string{"Workflow", "Run", "Kind", "Status", "Started", "Completed", "Error"})
		for _, execution := range data.Executions {
			cw.Write([]string{
				execution.WorkflowID,
				execution.RunID,
				string(execution.Kind),
				string(execution.Status),
				g.FormatTime(execution.StartedAt),
				g.FormatOptionalTime(execution.CompletedAt),
				execution.Error,
			})
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv write error: %w", err)
	}

	return buf.Bytes(), nil
}
