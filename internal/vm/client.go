package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rtm0/cdsstore/internal/dataset"
)

// Client is a Victoria Metrics client capable of inserting dataset records
// via various protocols.
type Client struct {
	logger       *slog.Logger
	httpCli      *http.Client
	insertURL    string
	metricPrefix string
	metrics      []string
	recToText    recToTextFunc
}

const metricPrefixRE = "^[a-zA-Z0-9]+$"

var metricNameRE = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// NewClient creates a new VM client. Metrics are the names of the record
// values, in record order.
func NewClient(logger *slog.Logger, insertURL string, maxConns int, metricPrefix string, metrics []string) (*Client, error) {
	u, err := url.Parse(insertURL)
	if err != nil {
		return nil, err
	}

	matches, err := regexp.MatchString(metricPrefixRE, metricPrefix)
	if err != nil {
		return nil, err
	}
	if !matches {
		return nil, fmt.Errorf("metric prefix %q does not match %q regular expression", metricPrefix, metricPrefixRE)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("no metrics to insert")
	}
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = metricNameRE.ReplaceAllString(m, "_")
	}

	apiParams := apiParamsFuncs[u.Path]
	if apiParams == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}
	q := u.Query()
	for name, value := range apiParams(metricPrefix, names) {
		q.Add(name, value)
	}
	u.RawQuery = q.Encode()

	recToText := recToTextFuncs[u.Path]
	if recToText == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}

	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        maxConns,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: maxConns,
				MaxConnsPerHost:     maxConns,
			},
		},
		insertURL:    u.String(),
		metricPrefix: metricPrefix,
		metrics:      names,
		recToText:    recToText,
	}, nil
}

// Insert inserts records into Victoria Metrics.
func (c *Client) Insert(ctx context.Context, recs []dataset.Record) error {
	body := recsToText(recs, c.metricPrefix, c.metrics, c.recToText)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.insertURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	res, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("could not post data: %w", err)
	}
	defer res.Body.Close()
	if _, err := io.Copy(io.Discard, res.Body); err != nil {
		c.logger.Error("Failed to drain response body", "err", err)
	}
	if res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d from %s", res.StatusCode, c.insertURL)
	}
	return nil
}

type apiParamsFunc func(string, []string) map[string]string

var apiParamsFuncs = map[string]apiParamsFunc{
	"/influx/write":        influxDBAPIParams,
	"/influx/api/v2/write": influxDBAPIParams,
	"/write":               influxDBAPIParams,
	"/api/v2/write":        influxDBAPIParams,
	"/api/v1/import/csv":   csvAPIParams,
}

func influxDBAPIParams(string, []string) map[string]string {
	return map[string]string{"precision": "ms"}
}

// csvAPIParams describes the CSV columns: time, latitude, longitude and one
// column per metric.
func csvAPIParams(metricPrefix string, metrics []string) map[string]string {
	cols := []string{"1:time:unix_ms", "2:label:la", "3:label:lo"}
	for i, m := range metrics {
		cols = append(cols, fmt.Sprintf("%d:metric:%s_%s", i+4, metricPrefix, m))
	}
	return map[string]string{"format": strings.Join(cols, ",")}
}

type recToTextFunc func(*strings.Builder, *dataset.Record, string, []string)

// recsToText converts multiple records to text. Records without any value
// are skipped.
func recsToText(recs []dataset.Record, metricPrefix string, metrics []string, recToText recToTextFunc) io.Reader {
	var sb strings.Builder
	for i := range recs {
		if !hasValue(&recs[i]) {
			continue
		}
		recToText(&sb, &recs[i], metricPrefix, metrics)
		sb.WriteString("\n")
	}
	return strings.NewReader(sb.String())
}

func hasValue(r *dataset.Record) bool {
	for _, v := range r.Values {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

var recToTextFuncs = map[string]recToTextFunc{
	"/influx/write":        recToInfluxDB,
	"/influx/api/v2/write": recToInfluxDB,
	"/write":               recToInfluxDB,
	"/api/v2/write":        recToInfluxDB,
	"/api/v1/import/csv":   recToCSV,
}

// recToInfluxDB converts a record into InfluxDB line protocol v2 and appends
// it to the string builder. NaN fields are left out.
func recToInfluxDB(sb *strings.Builder, r *dataset.Record, metricPrefix string, metrics []string) {
	fmt.Fprintf(sb, "%s,la=%.2f,lo=%.2f ", metricPrefix, r.Latitude, r.Longitude)
	first := true
	for i, v := range r.Values {
		if math.IsNaN(v) {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		sb.WriteString(metrics[i])
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	fmt.Fprintf(sb, " %d", r.Timestamp)
}

// recToCSV converts a record into a CSV record and appends it to the string
// builder. NaN values become empty columns.
func recToCSV(sb *strings.Builder, r *dataset.Record, _ string, _ []string) {
	fmt.Fprintf(sb, "%d,%.2f,%.2f", r.Timestamp, r.Latitude, r.Longitude)
	for _, v := range r.Values {
		sb.WriteByte(',')
		if !math.IsNaN(v) {
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
}
