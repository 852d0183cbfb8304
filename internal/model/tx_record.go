package model

import "time"

// TxRecord 已广播的交易，等待确认对账
// 确认数达到阈值后删除，钱包销毁时按地址删除
type TxRecord struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Hash            string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_chain_hash" json:"hash"`
	ChainID         string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_chain_hash;index" json:"chainId"`
	From            string    `gorm:"type:varchar(64);not null;index" json:"from"`
	To              string    `gorm:"type:varchar(64);not null" json:"to"`
	ContractAddress string    `gorm:"type:varchar(64)" json:"contractAddress,omitempty"`
	Value           string    `gorm:"type:varchar(80);not null" json:"value"` // 最小单位的十进制字符串
	Timestamp       int64     `gorm:"not null" json:"timestamp"`
	Confirmations   uint64    `gorm:"not null;default:0" json:"confirmations"`
	IsError         bool      `gorm:"not null;default:false" json:"isError"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

func (TxRecord) TableName() string {
	return "tx_records"
}

// AllModels postgres 启动时 AutoMigrate 的表
func AllModels() []any {
	return []any{&TxRecord{}}
}
