package model

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type RegisterResponse struct {
	User PublicUser `json:"user"`
}

type LoginResponse struct {
	User         PublicUser `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int64      `json:"expiresIn"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type MeResponse struct {
	User PublicUser `json:"user"`
}

type RevokeSessionsResponse struct {
	Revoked int64 `json:"revoked"`
}
