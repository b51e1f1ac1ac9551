package domain

// TextRequest is the body of POST /classify and POST /generate.
type TextRequest struct {
	Text string `json:"text"`
}

type TextResponse struct {
	Text       string            `json:"text"`
	Prediction Label             `json:"prediction"`
	Confidence float64           `json:"confidence"`
	ModelInfo  map[string]string `json:"model_info"`
}

type GenerationResult struct {
	InputText     string            `json:"input_text"`
	GeneratedText string            `json:"generated_text"`
	ModelInfo     map[string]string `json:"model_info"`
}

// ModelStatus is a snapshot of the generation model used by the status endpoints.
type ModelStatus struct {
	State  ModelState
	Device string
}

func (s ModelStatus) Loaded() bool {
	return s.State == ModelLoaded
}
