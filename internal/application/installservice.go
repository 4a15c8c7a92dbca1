package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/bunqpanel/internal/vault"
)

// EnvelopeFilename is the download name of a freshly issued envelope.
const EnvelopeFilename = "BunqWebApp.json"

// InstallService registers a new client key pair with the bank and seals the
// resulting credentials into an envelope only the owner's passphrase opens.
type InstallService struct {
	vault     *vault.Vault
	keys      driven.KeyPairGenerator
	newClient driven.BankClientFactory
	profiles  driven.ProfileStore
	logger    *slog.Logger
}

// NewInstallService creates a new InstallService with the required dependencies.
func NewInstallService(
	v *vault.Vault,
	keys driven.KeyPairGenerator,
	newClient driven.BankClientFactory,
	profiles driven.ProfileStore,
	logger *slog.Logger,
) *InstallService {
	return &InstallService{
		vault:     v,
		keys:      keys,
		newClient: newClient,
		profiles:  profiles,
		logger:    logger,
	}
}

// CreateEnvelope installs a new key pair for apiKey and returns the envelope
// bound to the owner's profile GUID.
func (s *InstallService) CreateEnvelope(ctx context.Context, ownerID, apiKey, passphrase string) (*model.Envelope, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidInput)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	profile, err := s.profiles.EnsureProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	privateKey, publicKey, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	inst, err := s.newClient(model.CredentialBundle{}).Install(ctx, publicKey)
	if err != nil {
		s.logger.Error("installation failed", "owner", ownerID, "error", err)
		return nil, fmt.Errorf("install client key: %w", err)
	}

	bundle := model.CredentialBundle{
		PrivateKey:      model.Secret(privateKey),
		APIKey:          model.Secret(apiKey),
		ServerPublicKey: inst.ServerPublicKey,
		SessionToken:    model.Secret(inst.Token),
	}

	secret, err := s.vault.Seal(bundle, passphrase)
	if err != nil {
		return nil, fmt.Errorf("seal envelope: %w", err)
	}

	s.logger.Info("envelope issued", "owner", ownerID)
	return &model.Envelope{OwnerGUID: profile.GUID, Secret: secret}, nil
}
