package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCaller struct {
	out  *big.Int
	err  error
	last ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.last = msg
	if f.err != nil {
		return nil, f.err
	}
	return common.LeftPadBytes(f.out.Bytes(), 32), nil
}

func TestTreasurySource_Quote(t *testing.T) {
	treasury := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	caller := &fakeCaller{out: big.NewInt(21_500_000)}

	src, err := NewTreasurySource(caller, treasury, 250000, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "treasury", src.ID())

	q, err := src.Quote(context.Background(), testPair, big.NewInt(7_000_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(21_500_000), q.AmountOut.Int64())
	assert.Equal(t, uint64(250000), q.GasEstimate)
	assert.Equal(t, treasury, *caller.last.To)
	// quotes must not alias the caller's amount
	assert.NotSame(t, q.AmountIn, q.AmountOut)
}

func TestTreasurySource_CallFailure(t *testing.T) {
	caller := &fakeCaller{err: errors.New("execution reverted")}
	src, err := NewTreasurySource(caller, common.Address{}, 250000, zap.NewNop())
	require.NoError(t, err)

	_, err = src.Quote(context.Background(), testPair, big.NewInt(1))
	assert.ErrorContains(t, err, "getSwapQuote")
}
