package transfer

type PostCreation struct {
	Content   string   `json:"content" validate:"required,max=20000"`
	Platforms []string `json:"platforms" validate:"omitempty,unique,dive,oneof=twitter linkedin facebook instagram"`
}

type PostUpdate struct {
	Content   *string  `json:"content" validate:"omitempty,min=1,max=20000"`
	Platforms []string `json:"platforms" validate:"omitempty,unique,dive,oneof=twitter linkedin facebook instagram"`
}

type PostReorder struct {
	PostIDs []int64 `json:"post_ids" validate:"required,min=1,unique,dive,gt=0"`
}
