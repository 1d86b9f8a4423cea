// Package sequencestore persists the per-batch-key file sequence numbers.
// The production store keeps them in AWS SSM Parameter Store so the counter
// survives across hosts and deployments.
package sequencestore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"go.uber.org/zap"
)

// ssmAPI is the slice of the SSM client the store uses
type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMStore stores one parameter per batch key under a common path prefix.
// The parameter value is "<sequence>,<date>,<key>"; only the first field is
// authoritative, the rest is operator-facing context about the last commit.
type SSMStore struct {
	client ssmAPI
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewSSMStore creates a store writing under the given parameter path prefix,
// e.g. "/apps/sapinvoices/sequence/".
func NewSSMStore(client *ssm.Client, prefix string, logger *zap.Logger) *SSMStore {
	return newSSMStore(client, prefix, logger)
}

func newSSMStore(client ssmAPI, prefix string, logger *zap.Logger) *SSMStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &SSMStore{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Current reads the persisted sequence number for the batch key
func (s *SSMStore) Current(ctx context.Context, key string) (int, error) {
	value, err := s.read(ctx, key)
	if err != nil {
		return 0, err
	}
	sequence, err := parseSequence(value)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", s.parameterName(key), err)
	}
	return sequence, nil
}

// CompareAndSwap re-reads the parameter, verifies it still carries old, and
// overwrites it with next. A value that moved underneath us means another run
// committed first and surfaces as shared.ErrSequenceConflict.
func (s *SSMStore) CompareAndSwap(ctx context.Context, key string, old, next int) error {
	value, err := s.read(ctx, key)
	if err != nil {
		return err
	}
	current, err := parseSequence(value)
	if err != nil {
		return fmt.Errorf("parameter %s: %w", s.parameterName(key), err)
	}
	if current != old {
		return fmt.Errorf("parameter %s holds %d, expected %d: %w",
			s.parameterName(key), current, old, shared.ErrSequenceConflict)
	}

	newValue := fmt.Sprintf("%d,%s,%s", next, s.now().Format("20060102"), key)
	_, err = s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.parameterName(key)),
		Value:     aws.String(newValue),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("writing parameter %s: %w", s.parameterName(key), err)
	}
	s.logger.Info("updated sequence parameter",
		zap.String("parameter", s.parameterName(key)),
		zap.String("value", newValue))
	return nil
}

func (s *SSMStore) read(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.parameterName(key)),
	})
	if err != nil {
		return "", fmt.Errorf("reading parameter %s: %w", s.parameterName(key), err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", s.parameterName(key))
	}
	return *out.Parameter.Value, nil
}

func (s *SSMStore) parameterName(key string) string {
	return s.prefix + key
}

// parseSequence extracts the sequence number from a stored parameter value.
// Sequence numbers carry at least three digits so the zero-padded file names
// sort correctly on the AP side.
func parseSequence(value string) (int, error) {
	field, _, _ := strings.Cut(value, ",")
	field = strings.TrimSpace(field)
	if len(field) < 3 {
		return 0, fmt.Errorf("sequence field %q is shorter than three digits", field)
	}
	sequence, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("sequence field %q is not a number: %w", field, err)
	}
	return sequence, nil
}
