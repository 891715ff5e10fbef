// internal/report/excel.go
package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelGenerator генератор Excel отчётов
type ExcelGenerator struct {
	BaseGenerator
}

// NewExcelGenerator создаёт новый генератор
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() Format {
	return FormatExcel
}

// Generate генерирует Excel отчёт
func (g *ExcelGenerator) Generate(ctx context.Context, data *ReportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	g.writeSummarySheet(f, data, headerStyle)
	g.writeSnapshotsSheet(f, data, headerStyle)
	g.writeNotificationsSheet(f, data, headerStyle)

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func cellAddr(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func (g *ExcelGenerator) writeSummarySheet(f *excelize.File, data *ReportData, headerStyle int) {
	sheetName := "Summary"
	f.NewSheet(sheetName)

	row := 1
	f.SetCellValue(sheetName, cellAddr("A", row), g.Title(data))
	f.MergeCell(sheetName, cellAddr("A", row), cellAddr("D", row))
	row += 2

	f.SetCellValue(sheetName, cellAddr("A", row), "Delivery")
	f.SetCellStyle(sheetName, cellAddr("A", row), cellAddr("B", row), headerStyle)
	row++

	rows := [][2]any{
		{"Tracking Number", data.Delivery.TrackingNumber},
		{"Status", string(data.Delivery.Status)},
		{"Customer", data.Customer.Name},
		{"Email", data.Customer.Email},
		{"Scheduled Delivery", g.FormatTime(data.Delivery.ScheduledDelivery)},
		{"Checks Performed", data.Delivery.ChecksPerformed},
	}
	for _, r := range rows {
		f.SetCellValue(sheetName, cellAddr("A", row), r[0])
		f.SetCellValue(sheetName, cellAddr("B", row), r[1])
		row++
	}
	row++

	f.SetCellValue(sheetName, cellAddr("A", row), "Route")
	f.SetCellStyle(sheetName, cellAddr("A", row), cellAddr("B", row), headerStyle)
	row++

	routeRows := [][2]any{
		{"Origin", data.Route.OriginAddress},
		{"Destination", data.Route.DestinationAddress},
		{"Distance (m)", data.Route.DistanceMeters},
		{"Normal Duration (s)", data.Route.NormalDurationSec},
		{"Current Delay (min)", data.Route.DelayMinutes()},
	}
	for _, r := range routeRows {
		f.SetCellValue(sheetName, cellAddr("A", row), r[0])
		f.SetCellValue(sheetName, cellAddr("B", row), r[1])
		row++
	}
}

func (g *ExcelGenerator) writeSnapshotsSheet(f *excelize.File, data *ReportData, headerStyle int) {
	sheetName := "Traffic Snapshots"
	f.NewSheet(sheetName)

	headers := []string{"Time", "Condition", "Delay (min)", "Severity", "Incident", "Description"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cellAddr(string(rune('A'+i)), 1), h)
	}
	f.SetCellStyle(sheetName, cellAddr("A", 1), cellAddr("F", 1), headerStyle)

	for i, snapshot := range data.Snapshots {
		row := i + 2
		f.SetCellValue(sheetName, cellAddr("A", row), g.FormatTime(snapshot.SnapshotAt))
		f.SetCellValue(sheetName, cellAddr("B", row), string(snapshot.TrafficCondition))
		f.SetCellValue(sheetName, cellAddr("C", row), snapshot.DelayMinutes)
		f.SetCellValue(sheetName, cellAddr("D", row), string(snapshot.Severity))
		f.SetCellValue(sheetName, cellAddr("E", row), string(snapshot.IncidentType))
		f.SetCellValue(sheetName, cellAddr("F", row), snapshot.Description)
	}
}

func (g *ExcelGenerator) writeNotificationsSheet(f *excelize.File, data *ReportData, headerStyle int) {
	sheetName := "Notifications"
	f.NewSheet(sheetName)

	headers := []string{"Time", "Channel", "Recipient", "Status", "Delay at Send (min)", "Error"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cellAddr(string(rune('A'+i)), 1), h)
	}
	f.SetCellStyle(sheetName, cellAddr("A", 1), cellAddr("F", 1), headerStyle)

	for i, notification := range data.Notifications {
		row := i + 2
		f.SetCellValue(sheetName, cellAddr("A", row), g.FormatOptionalTime(notification.SentAt))
		f.SetCellValue(sheetName, cellAddr("B", row), string(notification.Channel))
		f.SetCellValue(sheetName, cellAddr("C", row), notification.Recipient)
		f.SetCellValue(sheetName, cellAddr("D", row), string(notification.Status))
		f.SetCellValue(sheetName, cellAddr("E", row), notification.DelayMinutesAtSend)
		f.SetCellValue(sheetName, cellAddr("F", row), notification.ErrorMessage)
	}
}
