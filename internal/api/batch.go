package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ShivamCore/mlserve/internal/features"
	"github.com/ShivamCore/mlserve/internal/inference"
)

// maxBatchRows bounds one upload so every row can be validated before output starts.
const maxBatchRows = 100000

func (s *Server) handleBatchPredict(c *gin.Context) {
	d, ok := s.dispatcher(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderFailure(c, http.StatusBadRequest, errors.New("csv file is required in field \"file\""))
		} else {
			s.renderFailure(c, http.StatusBadRequest, err)
		}
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		s.renderFailure(c, http.StatusBadRequest, fmt.Errorf("only .csv uploads are accepted, got %q", fileHeader.Filename))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		s.renderFailure(c, http.StatusInternalServerError, err)
		return
	}
	defer src.Close()

	batch, err := readBatch(d.Schema(), src)
	if err != nil {
		s.renderFailure(c, http.StatusBadRequest, err)
		return
	}

	results := make([]inference.Result, 0, len(batch.rows))
	for i, row := range batch.rows {
		result := d.DispatchVector(row.vector)
		if !result.Success {
			s.renderFailure(c, http.StatusInternalServerError, fmt.Errorf("row %d: %s", i+1, result.Error))
			return
		}
		results = append(results, result)
	}

	task := d.Endpoint().Task
	withProbability := d.Endpoint().Kind == inference.Classification
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_predictions.csv", task))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	header := append(append([]string(nil), batch.header...), "prediction")
	if withProbability {
		header = append(header, "probability")
	}
	if err := writer.Write(header); err != nil {
		return
	}
	for i, result := range results {
		line := append(make([]string, 0, len(header)), batch.rows[i].cells...)
		line = append(line, formatFloat(result.Prediction))
		if withProbability {
			cell := ""
			if result.Probability != nil {
				cell = formatFloat(*result.Probability)
			}
			line = append(line, cell)
		}
		if err := writer.Write(line); err != nil {
			logrus.WithError(err).WithField("task", task).Warn("write batch output")
			return
		}
	}
	writer.Flush()

	logrus.WithFields(logrus.Fields{
		"task":       task,
		"rows":       len(results),
		"request_id": requestID(c),
	}).Info("batch prediction served")
	s.notifier.Broadcast(PredictionEvent{
		Type:      "batch",
		Task:      task,
		RequestID: requestID(c),
		Demo:      !d.Loaded(),
		Rows:      len(results),
	})
}

// batchUpload is a parsed CSV: the uploaded header and, per row, the uploaded
// cells padded to the header width next to the encoded vector.
type batchUpload struct {
	header []string
	rows   []batchRow
}

type batchRow struct {
	cells  []string
	vector []float64
}

// readBatch parses a CSV with a header row into schema-ordered vectors.
// Columns are matched by input key, feature name or alias; missing columns and
// empty cells take the slot default.
func readBatch(schema *features.Schema, r io.Reader) (*batchUpload, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[i] = name
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	slotColumn := make([]int, schema.Len())
	keys := schema.Keys()
	for i := range slotColumn {
		slotColumn[i] = -1
		slot, ok := schema.Slot(i)
		if !ok {
			continue
		}
		for _, key := range append([]string{slot.Key(), slot.Name}, slot.Aliases...) {
			if idx, ok := columns[key]; ok {
				slotColumn[i] = idx
				break
			}
		}
	}

	upload := &batchUpload{header: header}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		if row > maxBatchRows {
			return nil, fmt.Errorf("csv has more than %d rows", maxBatchRows)
		}
		rec := features.Record{}
		for i, idx := range slotColumn {
			if idx < 0 || idx >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[idx])
			if cell == "" {
				continue
			}
			rec[keys[i]] = cell
		}
		vec, err := features.Build(schema, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		cells := make([]string, len(header))
		copy(cells, record)
		upload.rows = append(upload.rows, batchRow{cells: cells, vector: vec})
	}
	if len(upload.rows) == 0 {
		return nil, errors.New("csv has no data rows")
	}
	return upload, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
