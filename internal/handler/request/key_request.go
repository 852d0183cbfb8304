package request

type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type ImportMnemonicRequest struct {
	Mnemonic   string `json:"mnemonic" binding:"required"`
	Passphrase string `json:"passphrase"`
	Password   string `json:"password"`
}

type SetPinRequest struct {
	Pin      string `json:"pin" binding:"required,min=4,max=12"`
	Password string `json:"password" binding:"required"`
}

type CheckPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}
