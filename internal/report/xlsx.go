package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/wallet"
	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetTargets = "Targets"
	SheetWallets = "Wallets"
)

var (
	targetHeader = []any{"ID", "URL", "Domain", "Title", "Status", "Risk level", "Risk score",
		"External risk", "Language", "Detected at", "Last scanned", "Scans", "Tags", "Keywords", "Tech"}
	walletHeader = []any{"Target ID", "Domain", "Coin", "Type", "Address", "Explorer"}
)

// WriteXLSX writes a workbook with a Targets sheet and a Wallets sheet.
func WriteXLSX(w io.Writer, targets []model.TargetDetail) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetTargets); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetWallets); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := setRow(f, SheetTargets, 1, targetHeader); err != nil {
		return err
	}
	if err := setRow(f, SheetWallets, 1, walletHeader); err != nil {
		return err
	}

	walletRow := 2
	for i := range targets {
		t := &targets[i]
		row := []any{
			t.ID, t.URL, t.Domain, t.Title, string(t.Status), string(t.RiskLevel), t.RiskScore,
			string(t.ExternalRisk), t.Language, formatTime(t.DetectedAt), formatTime(t.LastScanned), t.ScanCount,
			strings.Join(t.Tags, "|"), strings.Join(t.KeywordNames(), "|"), strings.Join(t.TechNames(), "|"),
		}
		if err := setRow(f, SheetTargets, i+2, row); err != nil {
			return err
		}
		for _, a := range t.Wallets {
			row := []any{t.ID, t.Domain, a.Coin, a.Type, a.Address, wallet.ExplorerURL(a.Coin, a.Address)}
			if err := setRow(f, SheetWallets, walletRow, row); err != nil {
				return err
			}
			walletRow++
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
