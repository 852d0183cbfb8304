package txn

import (
	"context"

	"go.uber.org/zap"

	"wallet-custody/internal/fee"
	"wallet-custody/pkg/logger"
)

// Stages 链族实现的四个阶段。U 为未签名交易，S 为已签名交易
type Stages[U, S any] interface {
	Estimate(ctx context.Context, req *SignRequest) (fee.Quote, error)
	BuildUnsigned(ctx context.Context, req *SignRequest, q fee.Quote) (U, error)
	Sign(ctx context.Context, req *SignRequest, unsigned U) (S, error)
	Broadcast(ctx context.Context, req *SignRequest, signed S) (*Broadcast, error)
}

// Execute 依次执行各阶段，任一阶段失败即停止并返回带阶段标记的错误
func Execute[U, S any](ctx context.Context, st Stages[U, S], req *SignRequest) (*Broadcast, error) {
	log := logger.Named("txn").With(zap.String("chain", string(req.Chain)))

	if err := req.Method.Validate(); err != nil {
		return nil, &StageError{Stage: StageSign, Err: err}
	}

	quote, err := st.Estimate(ctx, req)
	if err != nil {
		return nil, &StageError{Stage: StageEstimate, Err: err}
	}
	if req.FeeQuote != nil && req.FeeQuote.Total().Cmp(quote.Total()) != 0 {
		log.Info("fee changed since preview",
			zap.String("preview", req.FeeQuote.Total().String()),
			zap.String("current", quote.Total().String()))
	}
	log.Debug("stage done", zap.String("stage", string(StageEstimate)), zap.String("total_fee", quote.Total().String()))

	unsigned, err := st.BuildUnsigned(ctx, req, quote)
	if err != nil {
		return nil, &StageError{Stage: StageBuildUnsigned, Err: err}
	}

	signed, err := st.Sign(ctx, req, unsigned)
	if err != nil {
		return nil, &StageError{Stage: StageSign, Err: err}
	}

	b, err := st.Broadcast(ctx, req, signed)
	if err != nil {
		return nil, &StageError{Stage: StageBroadcast, Err: err}
	}
	b.Quote = quote
	log.Info("transaction broadcast", zap.String("hash", b.Hash))
	return b, nil
}
