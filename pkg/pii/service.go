package pii

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jscharber/privacyguard/pkg/logger"
	"github.com/jscharber/privacyguard/pkg/pii/classifier"
	"github.com/jscharber/privacyguard/pkg/pii/policy"
	"github.com/jscharber/privacyguard/pkg/pii/protection"
	"github.com/jscharber/privacyguard/pkg/pii/retention"
	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// ServiceConfig contains configuration for the privacy service.
type ServiceConfig struct {
	DefaultDomain  string `json:"default_domain" yaml:"default_domain"`
	MaxRecordBytes int    `json:"max_record_bytes" yaml:"max_record_bytes"`
}

// GetDefaultServiceConfig returns default service configuration.
func GetDefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		DefaultDomain:  "default",
		MaxRecordBytes: 1024 * 1024, // 1MB
	}
}

// ScanRequest asks the service to classify and protect one record.
type ScanRequest struct {
	TenantID string         `json:"tenant_id,omitempty"`
	EntityID string         `json:"entity_id,omitempty"`
	Domain   string         `json:"domain,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	Record   map[string]any `json:"record"`
}

// ScanResponse bundles classification, protection and retention outcomes.
type ScanResponse struct {
	RequestID       string                   `json:"request_id"`
	Classification  *types.Classification    `json:"classification"`
	ProtectedRecord map[string]any           `json:"protected_record"`
	ProtectionLog   []types.ProtectionResult `json:"protection_log,omitempty"`
	Retention       *types.RetentionDecision `json:"retention,omitempty"`
	Recommendations []string                 `json:"recommendations,omitempty"`
	ProcessingTime  time.Duration            `json:"processing_time"`
}

// Service is the high-level facade over the classifier, protection engine
// and retention calculator.
type Service struct {
	classifier *classifier.Classifier
	engine     *protection.Engine
	calculator *retention.Calculator
	config     *ServiceConfig
	log        *logger.Logger
}

// NewService creates a privacy service with default components backed by
// the given policy registry.
func NewService(registry *policy.Registry, config *ServiceConfig) *Service {
	if config == nil {
		config = GetDefaultServiceConfig()
	}
	return &Service{
		classifier: classifier.New(registry),
		engine:     protection.NewEngine(nil),
		calculator: retention.NewCalculator(),
		config:     config,
		log:        logger.NewDefaultLogger("privacyguard", "1.0.0"),
	}
}

// NewServiceWithComponents creates a privacy service from custom components.
func NewServiceWithComponents(c *classifier.Classifier, e *protection.Engine, r *retention.Calculator, config *ServiceConfig, log *logger.Logger) *Service {
	if config == nil {
		config = GetDefaultServiceConfig()
	}
	if log == nil {
		log = logger.NewDefaultLogger("privacyguard", "1.0.0")
	}
	return &Service{
		classifier: c,
		engine:     e,
		calculator: r,
		config:     config,
		log:        log,
	}
}

// Classifier returns the underlying classifier.
func (s *Service) Classifier() *classifier.Classifier { return s.classifier }

// Engine returns the underlying protection engine.
func (s *Service) Engine() *protection.Engine { return s.engine }

// Calculator returns the underlying retention calculator.
func (s *Service) Calculator() *retention.Calculator { return s.calculator }

// ScanAndProtect classifies a record, protects its sensitive fields and
// derives the retention decision.
func (s *Service) ScanAndProtect(ctx context.Context, request *ScanRequest) (*ScanResponse, error) {
	startTime := time.Now()
	requestID := uuid.New().String()

	if err := s.validateScanRequest(request); err != nil {
		return nil, fmt.Errorf("invalid scan request: %w", err)
	}

	domain := request.Domain
	if domain == "" {
		domain = s.config.DefaultDomain
	}

	log := s.log.WithTenant(request.TenantID, domain).WithField("request_id", requestID)

	classification, err := s.classifier.Classify(ctx, request.Record, domain, request.TenantID)
	if err != nil {
		log.Error("classification failed: %v", err)
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	response := &ScanResponse{
		RequestID:       requestID,
		Classification:  classification,
		ProtectedRecord: request.Record,
	}

	if classification.ContainsPII {
		protected, protectionLog, err := s.engine.Protect(ctx, request.Record, classification)
		if err != nil {
			log.Error("protection failed: %v", err)
			return nil, fmt.Errorf("protection failed: %w", err)
		}
		response.ProtectedRecord = protected
		response.ProtectionLog = protectionLog

		decision, err := s.calculator.CalculateExpiry(ctx, classification, request.TenantID, domain)
		if err != nil {
			log.Error("retention calculation failed: %v", err)
			return nil, fmt.Errorf("retention calculation failed: %w", err)
		}
		response.Retention = decision
	}

	response.Recommendations = s.generateRecommendations(classification)
	response.ProcessingTime = time.Since(startTime)

	log.Info("record scanned")
	log.WithFields(map[string]interface{}{
		"contains_pii":    classification.ContainsPII,
		"match_count":     len(classification.Matches),
		"risk_score":      classification.RiskScore,
		"confidentiality": classification.Confidentiality,
	}).Debug("scan detail")

	return response, nil
}

// Restore re-applies decryption to a protected record using its log.
func (s *Service) Restore(ctx context.Context, record map[string]any, protectionLog []types.ProtectionResult) (map[string]any, error) {
	return s.engine.Restore(ctx, record, protectionLog)
}

// MaskForLog returns a log-safe copy of a record.
func (s *Service) MaskForLog(record map[string]any, classification *types.Classification) map[string]any {
	return s.engine.MaskForLog(record, classification)
}

func (s *Service) validateScanRequest(request *ScanRequest) error {
	if request == nil {
		return fmt.Errorf("request is nil")
	}
	if request.Record == nil {
		return fmt.Errorf("record is required")
	}
	if s.config.MaxRecordBytes > 0 {
		data, err := json.Marshal(request.Record)
		if err != nil {
			return fmt.Errorf("record is not serializable: %w", err)
		}
		if len(data) > s.config.MaxRecordBytes {
			return fmt.Errorf("record size %d exceeds limit of %d bytes", len(data), s.config.MaxRecordBytes)
		}
	}
	return nil
}

// generateRecommendations suggests follow-up actions for the caller.
func (s *Service) generateRecommendations(classification *types.Classification) []string {
	var recommendations []string

	if !classification.ContainsPII {
		return recommendations
	}

	if classification.RequiresEncryption {
		recommendations = append(recommendations, "Store only the encrypted representation of flagged fields")
	}
	if classification.RiskScore >= 0.8 {
		recommendations = append(recommendations, "Review high-risk record before further processing")
	}
	if classification.HIPAAApplicable {
		recommendations = append(recommendations, "Apply HIPAA safeguards and access controls")
	}
	if classification.GDPRApplicable {
		recommendations = append(recommendations, "Document legal basis for processing")
	}

	return recommendations
}
