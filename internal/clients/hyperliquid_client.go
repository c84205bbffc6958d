// Package clients builds exchange API clients from locally held credentials.
package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/hyperdash/internal/domain"
)

// HyperliquidClient wraps the SDK exchange configured with an agent signing
// key acting for a wallet owner.
type HyperliquidClient struct {
	exchange  *hyperliquid.Exchange
	agentAddr string
	ownerAddr string
}

// NewHyperliquidClient derives the agent address from the record's private
// key and builds an exchange client signing as that agent on behalf of the
// owner's account.
func NewHyperliquidClient(record domain.AgentRecord, baseURL string) (*HyperliquidClient, error) {
	key := record.PrivateKey
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse agent private key")
	}

	pub := privateKey.Public()
	pubECDSA, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	agentAddr := crypto.PubkeyToAddress(*pubECDSA).Hex()

	accountAddr := record.OwnerAddress
	if accountAddr == "" {
		accountAddr = agentAddr
	}

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, agentAddr: agentAddr, ownerAddr: accountAddr}, nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) AgentAddress() string            { return c.agentAddr }
func (c *HyperliquidClient) OwnerAddress() string            { return c.ownerAddr }
