// internal/report/pdf.go
package report

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// PDFGenerator генератор PDF отчётов
type PDFGenerator struct {
	BaseGenerator
}

// NewPDFGenerator создаёт новый генератор
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() Format {
	return FormatPDF
}

// Стили
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241}
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle = props.Text{
		Size:  22,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	normalStyle = props.Text{
		Size: 10,
	}

	boldStyle = props.Text{
		Size:  10,
		Style: fontstyle.Bold,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  18,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  9,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  9,
		Align: align.Center,
	}
)

// Generate генерирует PDF отчёт
func (g *PDFGenerator) Generate(ctx context.Context, data *ReportData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	g.addHeader(m, data)
	g.addDeliverySection(m, data)
	g.addSnapshotsSection(m, data)
	g.addNotificationsSection(m, data)
	g.addFooter(m, data)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addHeader(m core.Maroto, data *ReportData) {
	m.AddRow(15,
		text.NewCol(12, g.Title(data), titleStyle),
	)
	m.AddRow(5,
		line.NewCol(12),
	)
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Customer: %s", data.Customer.Name), smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", g.FormatTime(data.GeneratedAt)),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(8)
}

func (g *PDFGenerator) addDeliverySection(m core.Maroto, data *ReportData) {
	g.addSection(m, "Delivery")

	g.addMetricCards(m, []metricCard{
		{Label: "Status", Value: string(data.Delivery.Status), Highlight: true},
		{Label: "Current Delay (min)", Value: fmt.Sprintf("%d", data.Route.DelayMinutes()), Highlight: true},
		{Label: "Checks Performed", Value: fmt.Sprintf("%d", data.Delivery.ChecksPerformed)},
	})

	m.AddRow(5)
	g.addKeyValueTable(m, []keyValue{
		{"Tracking Number", data.Delivery.TrackingNumber},
		{"Scheduled Delivery", g.FormatTime(data.Delivery.ScheduledDelivery)},
		{"Origin", data.Route.OriginAddress},
		{"Destination", data.Route.DestinationAddress},
		{"Distance", fmt.Sprintf("%d m", data.Route.DistanceMeters)},
	})
}

func (g *PDFGenerator) addSnapshotsSection(m core.Maroto, data *ReportData) {
	if len(data.Snapshots) == 0 {
		return
	}

	g.addSection(m, "Traffic Snapshots")

	m.AddRow(7,
		text.NewCol(3, "Time", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Condition", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Delay (min)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Severity", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Incident", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	limit := len(data.Snapshots)
	if limit > 25 {
		limit = 25
	}
	for _, snapshot := range data.Snapshots[:limit] {
		m.AddRow(6,
			text.NewCol(3, g.FormatTime(snapshot.SnapshotAt), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, string(snapshot.TrafficCondition), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", snapshot.DelayMinutes), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, string(snapshot.Severity), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, string(snapshot.IncidentType), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func (g *PDFGenerator) addNotificationsSection(m core.Maroto, data *ReportData) {
	if len(data.Notifications) == 0 {
		return
	}

	g.addSection(m, "Notifications")

	m.AddRow(7,
		text.NewCol(3, "Time", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Channel", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Recipient", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Status", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Delay (min)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	for _, notification := range data.Notifications {
		m.AddRow(6,
			text.NewCol(3, g.FormatOptionalTime(notification.SentAt), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, string(notification.Channel), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, notification.Recipient, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, string(notification.Status), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", notification.DelayMinutesAtSend), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

type metricCard struct {
	Label     string
	Value     string
	Highlight bool
}

func (g *PDFGenerator) addMetricCards(m core.Maroto, cards []metricCard) {
	if len(cards) == 0 {
		return
	}

	colSize := 12 / len(cards)
	if colSize < 2 {
		colSize = 2
	}

	var cols []core.Col
	for _, card := range cards {
		valueStyle := metricValueStyle
		if !card.Highlight {
			valueStyle.Size = 13
		}

		cols = append(cols,
			col.New(colSize).Add(
				text.New(card.Value, valueStyle),
				text.New(card.Label, metricLabelStyle),
			),
		)
	}

	m.AddRow(20, cols...)
}

type keyValue struct {
	Key   string
	Value string
}

func (g *PDFGenerator) addKeyValueTable(m core.Maroto, items []keyValue) {
	for _, item := range items {
		m.AddRow(6,
			text.NewCol(6, item.Key, boldStyle),
			text.NewCol(6, item.Value, normalStyle),
		)
	}
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(5)
}

func (g *PDFGenerator) addFooter(m core.Maroto, data *ReportData) {
	m.AddRow(10)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: lightGrayColor}),
	)
	m.AddRow(6,
		text.NewCol(12,
			fmt.Sprintf("Generated by Freightwatch | %s", g.FormatTime(data.GeneratedAt)),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Center},
		),
	)
}
