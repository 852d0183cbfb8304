package event

import (
	"context"
	"encoding/json"

	"wallet-custody/internal/model"
	"wallet-custody/internal/mq"
)

// TopicTxSent 默认主题，可通过 mq.topic 覆盖
const TopicTxSent = "wallet_events_tx_sent"

// TxSentEvent 交易广播成功并落库后发布
type TxSentEvent struct {
	Hash            string `json:"hash"`
	Chain           string `json:"chain"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contract_address,omitempty"`
	Value           string `json:"value"` // 最小单位
	Fee             string `json:"fee"`   // 最小单位
	Timestamp       int64  `json:"timestamp"`
}

// NewTxSentEvent fee 为本次发送使用的报价总额
func NewTxSentEvent(rec *model.TxRecord, fee string) TxSentEvent {
	return TxSentEvent{
		Hash:            rec.Hash,
		Chain:           rec.ChainID,
		From:            rec.From,
		To:              rec.To,
		ContractAddress: rec.ContractAddress,
		Value:           rec.Value,
		Fee:             fee,
		Timestamp:       rec.Timestamp,
	}
}

// Publisher 把领域事件序列化后交给 mq.Producer
type Publisher struct {
	producer mq.Producer
	topic    string
}

func NewPublisher(producer mq.Producer, topic string) *Publisher {
	if producer == nil {
		producer = mq.Nop{}
	}
	if topic == "" {
		topic = TopicTxSent
	}
	return &Publisher{producer: producer, topic: topic}
}

// TxSent 以发送地址为分区键
func (p *Publisher) TxSent(ctx context.Context, ev TxSentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, p.topic, ev.From, payload)
}
