package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/models"
)

// registryABI is the interface of the ContentRegistry contract. Calls go
// through the ABI only, so the client works unchanged against the original
// implementation or any upgraded one behind a proxy.
const registryABI = `[
	{"type":"function","name":"register","stateMutability":"nonpayable","inputs":[{"name":"contentHash","type":"bytes32"},{"name":"manifestURI","type":"string"}],"outputs":[]},
	{"type":"function","name":"updateManifest","stateMutability":"nonpayable","inputs":[{"name":"contentHash","type":"bytes32"},{"name":"manifestURI","type":"string"}],"outputs":[]},
	{"type":"function","name":"revoke","stateMutability":"nonpayable","inputs":[{"name":"contentHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"bindPlatform","stateMutability":"nonpayable","inputs":[{"name":"contentHash","type":"bytes32"},{"name":"platform","type":"string"},{"name":"platformId","type":"string"}],"outputs":[]},
	{"type":"function","name":"entries","stateMutability":"view","inputs":[{"name":"contentHash","type":"bytes32"}],"outputs":[{"name":"creator","type":"address"},{"name":"contentHash","type":"bytes32"},{"name":"manifestURI","type":"string"},{"name":"timestamp","type":"uint64"}]},
	{"type":"function","name":"resolveByPlatform","stateMutability":"view","inputs":[{"name":"platform","type":"string"},{"name":"platformId","type":"string"}],"outputs":[{"name":"creator","type":"address"},{"name":"contentHash","type":"bytes32"},{"name":"manifestURI","type":"string"},{"name":"timestamp","type":"uint64"}]},
	{"type":"event","name":"ContentRegistered","inputs":[{"name":"contentHash","type":"bytes32","indexed":true},{"name":"creator","type":"address","indexed":true},{"name":"manifestURI","type":"string","indexed":false},{"name":"timestamp","type":"uint64","indexed":false}],"anonymous":false},
	{"type":"event","name":"ManifestUpdated","inputs":[{"name":"contentHash","type":"bytes32","indexed":true},{"name":"manifestURI","type":"string","indexed":false},{"name":"timestamp","type":"uint64","indexed":false}],"anonymous":false},
	{"type":"event","name":"PlatformBound","inputs":[{"name":"contentHash","type":"bytes32","indexed":true},{"name":"platform","type":"string","indexed":false},{"name":"platformId","type":"string","indexed":false}],"anonymous":false}
]`

// EthRegistry is the Registry implementation backed by an Ethereum-compatible
// node over JSON-RPC.
type EthRegistry struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	opts     *bind.TransactOpts
	caller   common.Address
}

// NewEthRegistry dials the RPC endpoint and binds the registry contract.
// The private key signs all state-changing transactions; read-only
// deployments may omit it.
func NewEthRegistry(ctx context.Context, cfg config.LedgerConfig) (*EthRegistry, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	address := common.HexToAddress(cfg.RegistryAddress)
	r := &EthRegistry{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		abi:      parsed,
		address:  address,
	}

	if cfg.PrivateKey != "" {
		key, keyErr := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if keyErr != nil {
			client.Close()
			return nil, fmt.Errorf("parse ledger private key: %w", keyErr)
		}
		opts, optsErr := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
		if optsErr != nil {
			client.Close()
			return nil, fmt.Errorf("create transactor: %w", optsErr)
		}
		r.opts = opts
		r.caller = crypto.PubkeyToAddress(key.PublicKey)
	}

	return r, nil
}

// Close releases the underlying RPC connection.
func (r *EthRegistry) Close() {
	r.client.Close()
}

func (r *EthRegistry) Caller() string {
	return r.caller.Hex()
}

func (r *EthRegistry) Register(ctx context.Context, hash [32]byte, manifestURI string) (TxRef, error) {
	return r.transact(ctx, "register", hash, manifestURI)
}

func (r *EthRegistry) UpdateManifest(ctx context.Context, hash [32]byte, manifestURI string) (TxRef, error) {
	return r.transact(ctx, "updateManifest", hash, manifestURI)
}

func (r *EthRegistry) Revoke(ctx context.Context, hash [32]byte) (TxRef, error) {
	return r.transact(ctx, "revoke", hash)
}

func (r *EthRegistry) BindPlatform(ctx context.Context, hash [32]byte, platform, platformID string) (TxRef, error) {
	return r.transact(ctx, "bindPlatform", hash, platform, platformID)
}

func (r *EthRegistry) transact(ctx context.Context, method string, args ...any) (TxRef, error) {
	if r.opts == nil {
		return "", fmt.Errorf("%s: no signing key configured", method)
	}

	opts := *r.opts
	opts.Context = ctx

	tx, err := r.contract.Transact(&opts, method, args...)
	if err != nil {
		return "", mapRevert(method, err)
	}
	return TxRef(tx.Hash().Hex()), nil
}

func (r *EthRegistry) Entries(ctx context.Context, hash [32]byte) (models.ContentEntry, error) {
	return r.callEntry(ctx, "entries", hash)
}

func (r *EthRegistry) ResolveByPlatform(ctx context.Context, platform, platformID string) (models.ContentEntry, error) {
	return r.callEntry(ctx, "resolveByPlatform", platform, platformID)
}

func (r *EthRegistry) callEntry(ctx context.Context, method string, args ...any) (models.ContentEntry, error) {
	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return models.ContentEntry{}, fmt.Errorf("%s: %w", method, err)
	}

	creator, _ := out[0].(common.Address)
	contentHash, _ := out[1].([32]byte)
	manifestURI, _ := out[2].(string)
	timestamp, _ := out[3].(uint64)

	return models.ContentEntry{
		ContentHash: HashHex(contentHash),
		Creator:     creator.Hex(),
		ManifestURI: manifestURI,
		Timestamp:   timestamp,
	}, nil
}

func (r *EthRegistry) FilterRegistrations(ctx context.Context, hash [32]byte, from, to uint64) ([]RegistrationEvent, error) {
	event := r.abi.Events["ContentRegistered"]

	logs, err := r.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{r.address},
		Topics: [][]common.Hash{
			{event.ID},
			{common.BytesToHash(hash[:])},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("filter registration events: %w", err)
	}

	events := make([]RegistrationEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}

		unpacked, unpackErr := r.abi.Unpack("ContentRegistered", lg.Data)
		if unpackErr != nil {
			return nil, fmt.Errorf("unpack registration event: %w", unpackErr)
		}
		manifestURI, _ := unpacked[0].(string)
		timestamp, _ := unpacked[1].(uint64)

		events = append(events, RegistrationEvent{
			ContentHash: lg.Topics[1].Hex(),
			Creator:     common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
			ManifestURI: manifestURI,
			Timestamp:   timestamp,
			TxHash:      lg.TxHash.Hex(),
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (r *EthRegistry) HeadBlock(ctx context.Context) (uint64, error) {
	head, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("head block: %w", err)
	}
	return head, nil
}

// mapRevert translates contract revert reasons into the sentinel errors the
// rest of the service branches on. Unrecognized failures surface as upstream
// errors with the method name attached.
func mapRevert(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "alreadyregistered") || strings.Contains(msg, "already registered"):
		return models.ErrAlreadyRegistered
	case strings.Contains(msg, "alreadybound") || strings.Contains(msg, "already bound"):
		return models.ErrAlreadyBound
	case strings.Contains(msg, "notcreator") || strings.Contains(msg, "not creator") || strings.Contains(msg, "not the creator"):
		return models.ErrNotCreator
	case strings.Contains(msg, "notfound") || strings.Contains(msg, "not registered") || strings.Contains(msg, "not found"):
		return models.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", method, err)
	}
}
