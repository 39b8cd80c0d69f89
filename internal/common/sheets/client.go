// Package sheets adapts the Google Sheets v4 API to the ledger store
// operations used by the contact functions: append a row, add a sheet,
// write a fixed range, read a range.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	commonerrors "contact-functions/internal/common/errors"
	commonhttp "contact-functions/internal/common/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ValueInputOption makes Sheets parse values as if typed by a user, so the
// date column becomes a real date cell.
const ValueInputOption = "USER_ENTERED"

const missingRangeMessage = "Unable to parse range"

// Credentials is the service-account key material.
type Credentials struct {
	ProjectID    string
	PrivateKeyID string
	PrivateKey   string
	ClientEmail  string
	ClientID     string
	TokenURI     string
}

// JSON renders the credentials in Google's service-account key file format.
func (c Credentials) JSON() ([]byte, error) {
	tokenURI := c.TokenURI
	if tokenURI == "" {
		tokenURI = google.JWTTokenURL
	}
	return json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     c.ProjectID,
		"private_key_id": c.PrivateKeyID,
		"private_key":    c.PrivateKey,
		"client_email":   c.ClientEmail,
		"client_id":      c.ClientID,
		"auth_uri":       "https://accounts.google.com/o/oauth2/auth",
		"token_uri":      tokenURI,
	})
}

// StoreError is a failed Sheets call. Error returns the vendor's message
// unchanged so it can be shown to the submitter. A missing partition wraps
// commonerrors.ErrPartitionNotFound.
type StoreError struct {
	Operation        string
	Partition        string
	StatusCode       int
	Message          string
	PartitionMissing bool
	err              error
}

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.err
}

type Client struct {
	spreadsheetID string
	service       *gsheets.Service
}

// NewClient authenticates with a service-account JWT. Outbound calls,
// including token exchange, go through httpClient. endpoint overrides the
// API base URL when non-empty.
func NewClient(ctx context.Context, spreadsheetID string, creds Credentials, httpClient *commonhttp.Client, endpoint string) (*Client, error) {
	keyJSON, err := creds.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(keyJSON, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	base := http.DefaultClient
	if httpClient != nil {
		base = httpClient.HTTPClient()
	}
	// The token source keeps using this context for refreshes, so it must
	// outlive any single request.
	authCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := jwtConfig.Client(authCtx)
	if httpClient != nil && httpClient.Timeout() > 0 {
		authed.Timeout = httpClient.Timeout()
	}

	opts := []option.ClientOption{option.WithHTTPClient(authed)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewClientWithService(spreadsheetID, service), nil
}

// NewClientWithService wraps an already configured Sheets service.
func NewClientWithService(spreadsheetID string, service *gsheets.Service) *Client {
	return &Client{
		spreadsheetID: spreadsheetID,
		service:       service,
	}
}

// AppendRow appends row below the existing content of the partition's columns.
func (c *Client) AppendRow(ctx context.Context, partition string, row []interface{}) error {
	rng := ColumnsRange(partition, len(row))
	body := &gsheets.ValueRange{Values: [][]interface{}{row}}

	_, err := c.service.Spreadsheets.Values.Append(c.spreadsheetID, rng, body).
		ValueInputOption(ValueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return classify("append", partition, err)
	}
	return nil
}

// CreatePartition adds a sheet titled name.
func (c *Client) CreatePartition(ctx context.Context, name string) error {
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{Title: name},
			},
		}},
	}

	_, err := c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return classify("create_partition", name, err)
	}
	return nil
}

// WriteRange overwrites the cells at rng (A1 notation without the sheet name).
func (c *Client) WriteRange(ctx context.Context, partition, rng string, row []interface{}) error {
	body := &gsheets.ValueRange{Values: [][]interface{}{row}}

	_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, qualify(partition, rng), body).
		ValueInputOption(ValueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return classify("write_range", partition, err)
	}
	return nil
}

// ReadRange returns the rows stored at rng.
func (c *Client) ReadRange(ctx context.Context, partition, rng string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, qualify(partition, rng)).Context(ctx).Do()
	if err != nil {
		return nil, classify("read_range", partition, err)
	}
	return resp.Values, nil
}

func classify(operation, partition string, err error) error {
	storeErr := &StoreError{
		Operation: operation,
		Partition: partition,
		Message:   err.Error(),
		err:       err,
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		storeErr.StatusCode = apiErr.Code
		if apiErr.Message != "" {
			storeErr.Message = apiErr.Message
		}
		storeErr.PartitionMissing = apiErr.Code == http.StatusBadRequest &&
			strings.Contains(apiErr.Message, missingRangeMessage)
	}
	if storeErr.PartitionMissing {
		storeErr.err = commonerrors.NewPartitionNotFoundError(partition, err)
	}

	return storeErr
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// qualify prefixes rng with the sheet name, quoting names A1 notation
// would otherwise misread.
func qualify(partition, rng string) string {
	name := partition
	if !plainSheetName.MatchString(partition) {
		name = "'" + strings.ReplaceAll(partition, "'", "''") + "'"
	}
	return name + "!" + rng
}

// ColumnsRange spans the first width columns of the partition, e.g. "2025!A:F".
func ColumnsRange(partition string, width int) string {
	last := ColumnLetter(width)
	return qualify(partition, "A:"+last)
}

// FirstRowRange is the first row across width columns, e.g. "A1:F1".
func FirstRowRange(width int) string {
	return "A1:" + ColumnLetter(width) + "1"
}

// ColumnLetter converts a 1-based column index to its A1 letters.
func ColumnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
