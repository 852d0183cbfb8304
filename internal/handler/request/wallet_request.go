package request

// TokenRequest 省略时表示链的原生币
type TokenRequest struct {
	Symbol          string `json:"symbol"`
	ContractAddress string `json:"contract_address" binding:"required"`
	Decimals        int32  `json:"decimals" binding:"min=0,max=36"`
}

// TransferRequest 预览与发送共用的字段
type TransferRequest struct {
	Chain string        `json:"chain" binding:"required"`
	From  string        `json:"from" binding:"required"`
	To    string        `json:"to" binding:"required"`
	Token *TokenRequest `json:"token"`
}

// EstimateFeeRequest amount 为人类可读数量 (例如 "1.5")，可省略
type EstimateFeeRequest struct {
	TransferRequest
	Amount string `json:"amount" binding:"omitempty,amount"`
}

type SoftwareSigning struct {
	Password string `json:"password"`
}

type HardwareSigning struct {
	DeviceIndex int    `json:"device_index" binding:"min=0"`
	Transport   string `json:"transport" binding:"required,oneof=usb wireless"`
}

// SendRequest software 与 hardware 必须且只能给出一个，由流水线校验
type SendRequest struct {
	TransferRequest
	Amount   string           `json:"amount" binding:"required,amount"`
	Software *SoftwareSigning `json:"software"`
	Hardware *HardwareSigning `json:"hardware"`
}

type ValidateAddressRequest struct {
	Chain   string `form:"chain" binding:"required"`
	Address string `form:"address" binding:"required"`
}

type ConnectHardwareRequest struct {
	Chain       string `json:"chain" binding:"required"`
	Transport   string `json:"transport" binding:"required,oneof=usb wireless"`
	DeviceIndex int    `json:"device_index" binding:"min=0"`
}

// DestroyWalletRequest 删除所有本地私钥以及这些地址的待对账记录
type DestroyWalletRequest struct {
	Password  string   `json:"password"`
	Addresses []string `json:"addresses"`
}
