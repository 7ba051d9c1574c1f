// Package report renders the collected targets for hand-off and terminal
// display.
//
// Exporter writes timestamped files under <data>/exports in five formats:
// JSON, CSV, an HTML report, a Markdown report with a mermaid chart, and an
// XLSX workbook. Each format also has a Write function that renders to any
// io.Writer, which the HTTP API uses for inline exports. SimpleWriter prints
// the statistics summary shown by the stats command.
package report
