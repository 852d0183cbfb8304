package txn

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware"
	"wallet-custody/pkg/errno"
)

type fakeStages struct {
	failAt Stage
	calls  []Stage
}

var errBoom = errors.New("boom")

func (f *fakeStages) step(s Stage) error {
	f.calls = append(f.calls, s)
	if f.failAt == s {
		return errBoom
	}
	return nil
}

func (f *fakeStages) Estimate(context.Context, *SignRequest) (fee.Quote, error) {
	if err := f.step(StageEstimate); err != nil {
		return nil, err
	}
	return &fee.GasQuote{TotalFee: big.NewInt(21000)}, nil
}

func (f *fakeStages) BuildUnsigned(context.Context, *SignRequest, fee.Quote) (string, error) {
	return "unsigned", f.step(StageBuildUnsigned)
}

func (f *fakeStages) Sign(_ context.Context, _ *SignRequest, u string) ([]byte, error) {
	return []byte(u), f.step(StageSign)
}

func (f *fakeStages) Broadcast(context.Context, *SignRequest, []byte) (*Broadcast, error) {
	if err := f.step(StageBroadcast); err != nil {
		return nil, err
	}
	return &Broadcast{Hash: "0xabc"}, nil
}

func softwareRequest() *SignRequest {
	return &SignRequest{
		Chain:  chain.ETH,
		Amount: big.NewInt(1),
		Method: SigningMethod{Software: &SoftwareSigner{}},
	}
}

func TestExecute_Success(t *testing.T) {
	st := &fakeStages{}
	b, err := Execute[string, []byte](context.Background(), st, softwareRequest())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", b.Hash)
	assert.Equal(t, "21000", b.Quote.Total().String())
	assert.Equal(t, []Stage{StageEstimate, StageBuildUnsigned, StageSign, StageBroadcast}, st.calls)
}

func TestExecute_StageTagged(t *testing.T) {
	for _, stage := range []Stage{StageEstimate, StageBuildUnsigned, StageSign, StageBroadcast} {
		t.Run(string(stage), func(t *testing.T) {
			st := &fakeStages{failAt: stage}
			_, err := Execute[string, []byte](context.Background(), st, softwareRequest())

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, stage, se.Stage)
			assert.ErrorIs(t, err, errBoom)
			assert.Equal(t, stage, st.calls[len(st.calls)-1], "失败后不再继续")
		})
	}
}

func TestExecute_InvalidSignInformation(t *testing.T) {
	st := &fakeStages{}
	req := softwareRequest()
	req.Method = SigningMethod{}

	_, err := Execute[string, []byte](context.Background(), st, req)
	assert.ErrorIs(t, err, errno.ErrInvalidSignInformation)
	assert.Empty(t, st.calls, "不访问节点")
}

func TestSigningMethod_Validate(t *testing.T) {
	assert.NoError(t, SigningMethod{Software: &SoftwareSigner{}}.Validate())
	assert.NoError(t, SigningMethod{Hardware: &HardwareSigner{Transport: hardware.USB}}.Validate())
	assert.ErrorIs(t, SigningMethod{}.Validate(), errno.ErrInvalidSignInformation)
	assert.ErrorIs(t, SigningMethod{
		Software: &SoftwareSigner{},
		Hardware: &HardwareSigner{Transport: hardware.USB},
	}.Validate(), errno.ErrInvalidSignInformation)
	assert.ErrorIs(t, SigningMethod{Hardware: &HardwareSigner{Transport: "nfc"}}.Validate(), errno.ErrInvalidSignInformation)
}
