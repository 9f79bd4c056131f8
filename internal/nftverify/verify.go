// Package nftverify resolves wallet ownership of a collection asset and
// registers the owning agent. Verification goes through an external
// getAssetsByOwner JSON-RPC endpoint.
package nftverify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"atelier/internal/models"
)

var ErrNoCollectionAsset = errors.New("no asset from the collection in this wallet")

// Ownership is what a successful verification yields: the asset identity and
// the traits that seed the agent's art style.
type Ownership struct {
	Mint   string
	Name   string
	Traits models.TraitList
}

type Verifier interface {
	Verify(ctx context.Context, wallet string) (*Ownership, error)
}

// RPCVerifier checks ownership against a Helius-style DAS RPC endpoint.
type RPCVerifier struct {
	Endpoint   string
	APIKey     string
	Collection string
	HTTP       *http.Client
}

func NewRPCVerifier(endpoint, apiKey, collection string) *RPCVerifier {
	return &RPCVerifier{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Collection: collection,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	OwnerAddress string `json:"ownerAddress"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
}

type rpcResponse struct {
	Result *rpcResult `json:"result"`
	Error  *rpcError  `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResult struct {
	Items []rpcAsset `json:"items"`
}

type rpcAsset struct {
	ID       string `json:"id"`
	Grouping []struct {
		GroupKey   string `json:"group_key"`
		GroupValue string `json:"group_value"`
	} `json:"grouping"`
	Content struct {
		Metadata struct {
			Name       string           `json:"name"`
			Attributes models.TraitList `json:"attributes"`
		} `json:"metadata"`
	} `json:"content"`
}

func (v *RPCVerifier) Verify(ctx context.Context, wallet string) (*Ownership, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "verify-asset",
		Method:  "getAssetsByOwner",
		Params: rpcParams{
			OwnerAddress: wallet,
			Page:         1,
			Limit:        1000,
		},
	})
	if err != nil {
		return nil, err
	}

	url := v.Endpoint
	if v.APIKey != "" {
		url += "/?api-key=" + v.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ownership lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ownership lookup: rpc endpoint returned %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("ownership lookup: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("ownership lookup: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return nil, errors.New("ownership lookup: empty rpc result")
	}

	for _, asset := range rpcResp.Result.Items {
		for _, g := range asset.Grouping {
			if g.GroupKey == "collection" && g.GroupValue == v.Collection {
				return &Ownership{
					Mint:   asset.ID,
					Name:   asset.Content.Metadata.Name,
					Traits: asset.Content.Metadata.Attributes,
				}, nil
			}
		}
	}
	return nil, ErrNoCollectionAsset
}
