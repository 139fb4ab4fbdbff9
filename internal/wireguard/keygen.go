package wireguard

import (
	"context"
	"fmt"
	"strings"

	"github.com/becape187/vpnserver-agent/internal/platform"
)

// GenerateKeypair produces a new WireGuard private/public keypair by
// shelling out to the platform tool twice: `wg genkey`, then `wg pubkey`
// fed the private key on stdin. The core never runs its own cryptography.
func GenerateKeypair(ctx context.Context, runner platform.Runner) (privateKey, publicKey string, err error) {
	privResult, err := runner.Run(ctx, "wg", "genkey")
	if err != nil {
		return "", "", fmt.Errorf("wireguard: generate private key: %w", err)
	}
	privateKey = strings.TrimSpace(privResult.Stdout)
	if privateKey == "" {
		return "", "", fmt.Errorf("wireguard: generate private key: empty output")
	}

	pubResult, err := runner.RunStdin(ctx, privateKey+"\n", "wg", "pubkey")
	if err != nil {
		return "", "", fmt.Errorf("wireguard: derive public key: %w", err)
	}
	publicKey = strings.TrimSpace(pubResult.Stdout)
	if publicKey == "" {
		return "", "", fmt.Errorf("wireguard: derive public key: empty output")
	}

	return privateKey, publicKey, nil
}
