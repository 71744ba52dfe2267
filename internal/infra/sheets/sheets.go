// Package sheets implements the ledger service on Google Sheets and Drive.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Client talks to the Sheets and Drive APIs. Every Drive call passes
// supportsAllDrives so files in shared drives can be moved and deleted.
type Client struct {
	sheets *sheetsapi.Service
	drive  *drive.Service
}

var _ ledger.Service = (*Client)(nil)

// New builds both API services from the same client options.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	ss, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("New: sheets service: %w", err)
	}
	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("New: drive service: %w", err)
	}
	return &Client{sheets: ss, drive: ds}, nil
}

// toStatus converts API errors into ledger.StatusError.
func toStatus(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Message
		if body == "" {
			body = gerr.Body
		}
		return &ledger.StatusError{Code: gerr.Code, Body: body}
	}
	return err
}

func (c *Client) CreateSpreadsheet(ctx context.Context, title string) (*ledger.Spreadsheet, error) {
	resp, err := c.sheets.Spreadsheets.Create(&sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("CreateSpreadsheet: %w", toStatus(err))
	}

	out := &ledger.Spreadsheet{ID: resp.SpreadsheetId, URL: resp.SpreadsheetUrl}
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		out.Sheets = append(out.Sheets, ledger.Sheet{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return out, nil
}

func (c *Client) WriteValues(ctx context.Context, spreadsheetID, a1Range string, rows [][]any) error {
	_, err := c.sheets.Spreadsheets.Values.Update(spreadsheetID, a1Range, &sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("WriteValues: %w", toStatus(err))
	}
	return nil
}

func (c *Client) ReadValues(ctx context.Context, spreadsheetID, a1Range string) ([][]any, error) {
	resp, err := c.sheets.Spreadsheets.Values.Get(spreadsheetID, a1Range).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ReadValues: %w", toStatus(err))
	}
	return resp.Values, nil
}

func (c *Client) AddSheet(ctx context.Context, spreadsheetID, title string, hidden bool) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: title, Hidden: hidden},
			},
		}},
	}
	if _, err := c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("AddSheet: %w", toStatus(err))
	}
	return nil
}

func (c *Client) GetParents(ctx context.Context, fileID string) ([]string, error) {
	f, err := c.drive.Files.Get(fileID).
		Fields("parents").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("GetParents: %w", toStatus(err))
	}
	return f.Parents, nil
}

func (c *Client) UpdateParents(ctx context.Context, fileID string, add, remove []string) error {
	call := c.drive.Files.Update(fileID, &drive.File{}).
		SupportsAllDrives(true).
		Fields("id, parents")
	if len(add) > 0 {
		call = call.AddParents(strings.Join(add, ","))
	}
	if len(remove) > 0 {
		call = call.RemoveParents(strings.Join(remove, ","))
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("UpdateParents: %w", toStatus(err))
	}
	return nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.drive.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("DeleteFile: %w", toStatus(err))
	}
	return nil
}
