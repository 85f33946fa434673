package pii

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscharber/privacyguard/pkg/pii/classifier"
	"github.com/jscharber/privacyguard/pkg/pii/policy"
	"github.com/jscharber/privacyguard/pkg/pii/protection"
	"github.com/jscharber/privacyguard/pkg/pii/retention"
	"github.com/jscharber/privacyguard/pkg/pii/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv(protection.DefaultKeyEnvVar, "test-master-secret")
	return NewService(policy.NewRegistry(), nil)
}

func TestScanAndProtectFullPipeline(t *testing.T) {
	service := newTestService(t)

	response, err := service.ScanAndProtect(context.Background(), &ScanRequest{
		TenantID: "tenant-a",
		EntityID: "customer-42",
		Domain:   "crm",
		Actor:    "ingest-service",
		Record: map[string]any{
			"email":       "jane@example.com",
			"card_number": "4111-1111-1111-1111",
			"status":      "active",
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, response.RequestID)
	require.NotNil(t, response.Classification)
	assert.True(t, response.Classification.ContainsPII)
	assert.True(t, response.Classification.RequiresEncryption)

	// Financial presence upgrades the card field to encryption; the contact
	// field is masked.
	card, ok := response.ProtectedRecord["card_number"].(string)
	require.True(t, ok)
	assert.True(t, protection.IsEncryptedValue(card))
	assert.Equal(t, "****@example.com", response.ProtectedRecord["email"])
	assert.Equal(t, "active", response.ProtectedRecord["status"])

	require.NotNil(t, response.Retention)
	assert.Equal(t, 2555, response.Retention.RetentionDays)

	assert.NotEmpty(t, response.Recommendations)
	assert.GreaterOrEqual(t, len(response.ProtectionLog), 2)
}

func TestScanAndProtectCleanRecord(t *testing.T) {
	service := newTestService(t)

	record := map[string]any{"status": "active", "count": 3}
	response, err := service.ScanAndProtect(context.Background(), &ScanRequest{
		TenantID: "tenant-a",
		Record:   record,
	})
	require.NoError(t, err)

	assert.False(t, response.Classification.ContainsPII)
	assert.Equal(t, record, response.ProtectedRecord)
	assert.Nil(t, response.Retention)
	assert.Empty(t, response.ProtectionLog)
	assert.Empty(t, response.Recommendations)
}

func TestScanAndProtectDefaultsDomain(t *testing.T) {
	service := newTestService(t)

	response, err := service.ScanAndProtect(context.Background(), &ScanRequest{
		Record: map[string]any{"email": "jane@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "default", response.Classification.Domain)
}

func TestScanAndProtectValidation(t *testing.T) {
	service := newTestService(t)

	_, err := service.ScanAndProtect(context.Background(), nil)
	assert.Error(t, err)

	_, err = service.ScanAndProtect(context.Background(), &ScanRequest{})
	assert.Error(t, err)
}

func TestScanAndProtectEnforcesSizeLimit(t *testing.T) {
	t.Setenv(protection.DefaultKeyEnvVar, "test-master-secret")
	service := NewService(policy.NewRegistry(), &ServiceConfig{
		DefaultDomain:  "default",
		MaxRecordBytes: 64,
	})

	_, err := service.ScanAndProtect(context.Background(), &ScanRequest{
		Record: map[string]any{"note": strings.Repeat("x", 256)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestServiceRestoreRoundTrip(t *testing.T) {
	service := newTestService(t)

	response, err := service.ScanAndProtect(context.Background(), &ScanRequest{
		TenantID: "tenant-a",
		Domain:   "clinic",
		Record:   map[string]any{"diagnosis": "type 2 diabetes"},
	})
	require.NoError(t, err)
	require.True(t, protection.IsEncryptedValue(response.ProtectedRecord["diagnosis"].(string)))

	restored, err := service.Restore(context.Background(), response.ProtectedRecord, response.ProtectionLog)
	require.NoError(t, err)
	assert.Equal(t, "type 2 diabetes", restored["diagnosis"])
}

func TestServiceMaskForLog(t *testing.T) {
	service := newTestService(t)

	record := map[string]any{"email": "jane@example.com"}
	classification := &types.Classification{
		ContainsPII:     true,
		SensitiveFields: []string{"email"},
	}

	masked := service.MaskForLog(record, classification)
	assert.Equal(t, "****@example.com", masked["email"])
	assert.Equal(t, "jane@example.com", record["email"])
}

func TestNewServiceWithComponents(t *testing.T) {
	registry := policy.NewRegistry()
	service := NewServiceWithComponents(
		classifier.New(registry),
		protection.NewEngine(&protection.Config{
			KeyProvider:  protection.NewEnvKeyProvider(""),
			DefaultKeyID: "primary",
		}),
		retention.NewCalculator(),
		&ServiceConfig{DefaultDomain: "crm", MaxRecordBytes: 4096},
		nil,
	)

	assert.NotNil(t, service.Classifier())
	assert.NotNil(t, service.Engine())
	assert.NotNil(t, service.Calculator())
}

func TestGenerateRecommendations(t *testing.T) {
	service := newTestService(t)

	none := service.generateRecommendations(&types.Classification{})
	assert.Empty(t, none)

	hipaa := service.generateRecommendations(&types.Classification{
		ContainsPII:        true,
		RequiresEncryption: true,
		GDPRApplicable:     true,
		HIPAAApplicable:    true,
		RiskScore:          0.9,
	})
	assert.Len(t, hipaa, 4)
}
