package export

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/whisper"
)

var log = logger.New().WithComponent("export")

// WriteReviewSheet renders the raw transcript as a spreadsheet for manual
// review. Purely a convenience artifact: it is not part of the transfer set
// and any failure here is logged, never escalated.
func WriteReviewSheet(t whisper.Transcript, outputDir string) {
	target := filepath.Join(outputDir, t.CarrierID+".xlsx")
	if err := writeSheet(t, target); err != nil {
		log.WithField("target", target).WithError(err).Warn("could not write review spreadsheet")
		return
	}
	log.WithField("target", target).Info("review spreadsheet written")
}

func writeSheet(t whisper.Transcript, target string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"sequenceNr", "start", "end", "text"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, segment := range t.Segments {
		row := []interface{}{i, segment.Start, segment.End, segment.Text}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(target)
}
