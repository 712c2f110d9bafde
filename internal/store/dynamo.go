package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/clock"
)

const (
	pkPrefix = "REPORT#"
	skMeta   = "META"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements ReportStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	clock     clock.Clock
}

// Compile-time interface check.
var _ ReportStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, clock: clock.Real{}}
}

// reportRecord is the stored shape. Items is the outcome list as
// zstd-compressed JSON; the counters stay readable in the console.
type reportRecord struct {
	ID        string `dynamodbav:"reportId"`
	Total     int    `dynamodbav:"total"`
	Completed int    `dynamodbav:"completed"`
	Failed    int    `dynamodbav:"failed"`
	CreatedAt int64  `dynamodbav:"createdAt"`
	Items     []byte `dynamodbav:"items"`
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

func reportPK(id string) string {
	return pkPrefix + id
}

func (s *DynamoStore) Put(ctx context.Context, id string, report catalog.BatchReport) error {
	raw, err := json.Marshal(report.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	now := s.clock.Now()
	rec := reportRecord{
		ID:        id,
		Total:     report.TotalCount,
		Completed: report.CompletedCount,
		Failed:    report.FailedCount,
		CreatedAt: now.UnixMilli(),
		Items:     encoder.EncodeAll(raw, nil),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pk := reportPK(id)
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ReportTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}

	log.Debug().
		Str("report_id", id).
		Int("items", report.TotalCount).
		Int("raw_bytes", len(raw)).
		Int("stored_bytes", len(rec.Items)).
		Msg("Report stored")
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*catalog.BatchReport, error) {
	pk := reportPK(id)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	if expired(result.Item, s.clock.Now()) {
		return nil, nil
	}

	var rec reportRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}
	raw, err := decoder.DecodeAll(rec.Items, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress PK=%s: %w", pk, err)
	}
	report := &catalog.BatchReport{
		TotalCount:     rec.Total,
		CompletedCount: rec.Completed,
		FailedCount:    rec.Failed,
	}
	if err := json.Unmarshal(raw, &report.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items PK=%s: %w", pk, err)
	}
	return report, nil
}

// expired reports whether the TTL has passed. DynamoDB deletes expired
// items lazily, so a read may still see them.
func expired(item map[string]types.AttributeValue, now time.Time) bool {
	n, ok := item["expiresAt"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	at, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return now.Unix() >= at
}
