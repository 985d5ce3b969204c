package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

const listPartition = "list"

// Table string properties hold at most 64 KiB of UTF-16 and entities at most
// 1 MiB, leaving headroom for keys and metadata.
const (
	maxPropertyUTF16Units = 32 * 1024
	maxDocumentChunks     = 15
)

// ErrDocumentTooLarge is returned when a document does not fit a table entity.
var ErrDocumentTooLarge = errors.New("document exceeds table entity limit")

var errMissingDocument = errors.New("list entity has no document")

// TableStore keeps documents in an Azure Storage table, one entity per token.
type TableStore struct {
	table *aztables.Client
}

// NewTableStore creates a TableStore from a storage connection string.
func NewTableStore(connStr, tableName string) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    10 * time.Second,
				RetryDelay:    200 * time.Millisecond,
				MaxRetryDelay: 2 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableStore{table: svc.NewClient(tableName)}, nil
}

// EnsureTable creates the backing table, tolerating one that already exists.
func (s *TableStore) EnsureTable(ctx context.Context) error {
	_, err := s.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Documents are split across Document0..DocumentN string properties so a
// list is not limited to a single 64 KiB property. Entities written with a
// single Document property are still readable.
const (
	documentProperty       = "Document"
	documentChunkCountProp = "DocumentChunks"
)

func chunkProperty(i int) string {
	return documentProperty + strconv.Itoa(i)
}

// splitDocument cuts s on rune boundaries into pieces of at most
// maxPropertyUTF16Units UTF-16 code units each.
func splitDocument(s string) []string {
	var chunks []string
	start, units := 0, 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if units+n > maxPropertyUTF16Units {
			chunks = append(chunks, s[start:i])
			start, units = i, 0
		}
		units += n
	}
	if start < len(s) || len(chunks) == 0 {
		chunks = append(chunks, s[start:])
	}
	return chunks
}

func encodeListEntity(token string, data []byte) ([]byte, error) {
	chunks := splitDocument(string(data))
	if len(chunks) > maxDocumentChunks {
		return nil, ErrDocumentTooLarge
	}
	ent := map[string]any{
		"PartitionKey":         listPartition,
		"RowKey":               token,
		documentChunkCountProp: len(chunks),
	}
	for i, chunk := range chunks {
		ent[chunkProperty(i)] = chunk
	}
	return json.Marshal(ent)
}

func decodeListEntity(data []byte) ([]byte, error) {
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	count, ok := props[documentChunkCountProp].(float64)
	if !ok {
		doc, ok := props[documentProperty].(string)
		if !ok {
			return nil, errMissingDocument
		}
		return []byte(doc), nil
	}

	var b strings.Builder
	for i := 0; i < int(count); i++ {
		chunk, ok := props[chunkProperty(i)].(string)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %d of %d", errMissingDocument, i, int(count))
		}
		b.WriteString(chunk)
	}
	return []byte(b.String()), nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// Read returns the stored blob; a missing entity is not an error.
func (s *TableStore) Read(ctx context.Context, token string) ([]byte, bool, error) {
	resp, err := s.table.GetEntity(ctx, listPartition, token, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read list: %w", err)
	}
	data, err := decodeListEntity(resp.Value)
	if err != nil {
		return nil, false, fmt.Errorf("decode list entity: %w", err)
	}
	return data, true, nil
}

// Write replaces the entity for token.
func (s *TableStore) Write(ctx context.Context, token string, data []byte) error {
	payload, err := encodeListEntity(token, data)
	if err != nil {
		return err
	}
	_, err = s.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	if err != nil {
		return fmt.Errorf("write list: %w", err)
	}
	return nil
}

// Delete removes the entity for token. A missing entity is not an error.
func (s *TableStore) Delete(ctx context.Context, token string) error {
	_, err := s.table.DeleteEntity(ctx, listPartition, token, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// Ping issues a single row lookup to verify the table answers.
func (s *TableStore) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	if _, err := pager.NextPage(ctx); err != nil {
		return fmt.Errorf("ping table: %w", err)
	}
	return nil
}
