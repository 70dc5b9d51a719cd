package datacontract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/contractd/contractd/pkg/engine"
)

// openBigQuery connects to the server's project and dataset. Credentials
// come from the service account file at
// DATACONTRACT_BIGQUERY_ACCOUNT_INFO_JSON_PATH, else from the application
// default credentials.
func openBigQuery(ctx context.Context, cfg SourceConfig) (Source, error) {
	s := cfg.Server
	if err := requireProps(cfg, map[string]string{"project": s.Project, "dataset": s.Dataset}, "project", "dataset"); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if path := cfg.env("BIGQUERY", "ACCOUNT_INFO_JSON_PATH"); path != "" {
		creds, err := os.ReadFile(path)
		if err != nil {
			return nil, engine.Wrap(engine.KindInvalidArgument, err, "cannot read bigquery credentials from '%s'", path)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	client, err := bigquery.NewClient(ctx, s.Project, opts...)
	if err != nil {
		return nil, unavailable(err, cfg)
	}
	src := &bigQuerySource{client: client, project: s.Project, dataset: s.Dataset}
	if _, err := client.Dataset(s.Dataset).Metadata(ctx); err != nil {
		_ = client.Close()
		return nil, unavailable(err, cfg)
	}
	return src, nil
}

type bigQuerySource struct {
	client  *bigquery.Client
	project string
	dataset string
}

func (s *bigQuerySource) Dialect() *Dialect {
	return dialects["bigquery"]
}

func (s *bigQuerySource) Columns(ctx context.Context, model string) (map[string]string, error) {
	md, err := s.client.Dataset(s.dataset).Table(model).Metadata(ctx)
	if err != nil {
		return nil, err
	}
	cols := make(map[string]string, len(md.Schema))
	for _, f := range md.Schema {
		t := string(f.Type)
		if f.Repeated {
			t = "ARRAY<" + t + ">"
		}
		cols[strings.ToLower(f.Name)] = t
	}
	return cols, nil
}

func (s *bigQuerySource) QueryNumber(ctx context.Context, query string) (float64, error) {
	q := s.client.Query(query)
	q.DefaultProjectID = s.project
	q.DefaultDatasetID = s.dataset

	it, err := q.Read(ctx)
	if err != nil {
		return 0, err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return 0, fmt.Errorf("query returned no rows")
		}
		return 0, err
	}
	if len(row) == 0 {
		return 0, fmt.Errorf("query returned no columns")
	}
	return toNumber(row[0])
}

func (s *bigQuerySource) Close() error {
	return s.client.Close()
}
