package domain

// UserModel the authenticated learner as returned by /users/me
type UserModel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatarUrl"`
}

// ProfileUpdate editable profile fields, empty values are left untouched
type ProfileUpdate struct {
	Name       string `form:"name" validate:"omitempty,max=120"`
	Phone      string `form:"phone" validate:"omitempty,max=32"`
	AvatarName string `form:"-"`
	Avatar     []byte `form:"-"`
}
