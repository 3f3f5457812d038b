package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/krishisahay/krishisahay-go/internal/disease"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// PredictResponse is the body of a successful /predict call.
type PredictResponse struct {
	PredictedClass   int     `json:"predicted_class"`
	PredictedDisease string  `json:"predicted_disease"`
	DisplayName      string  `json:"display_name"`
	Confidence       float32 `json:"confidence"`
}

// ChatRequest is the JSON body of /chat.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	Language  string `json:"language"`
	ReadAloud *bool  `json:"read_aloud"`
}

// ChatResponse is the body of a successful /chat call. AudioResponse is
// empty unless the answer was read aloud.
type ChatResponse struct {
	Response          string `json:"response"`
	AudioResponse     string `json:"audio_response"`
	UserTranscription string `json:"user_transcription,omitempty"`
}

// predict classifies the uploaded leaf image.
func (s *Server) predict(c echo.Context) error {
	data, ok, err := readUpload(c, "image")
	if err != nil {
		return s.HandleError(c, err, "failed to read image upload")
	}
	if !ok {
		return s.badRequest(c, "No image file provided.")
	}

	tensor, err := s.deps.Images.FromBytes(data)
	if err != nil {
		return s.HandleError(c, err, "failed to decode image")
	}
	prediction, err := s.deps.Classifier.Predict(tensor)
	if err != nil {
		return s.HandleError(c, err, "failed to classify image")
	}

	return c.JSON(http.StatusOK, PredictResponse{
		PredictedClass:   prediction.Index,
		PredictedDisease: prediction.Label,
		DisplayName:      disease.DisplayName(prediction.Label),
		Confidence:       prediction.Confidence,
	})
}

func (s *Server) diseaseInfo(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("disease_name"))
	if name == "" {
		return s.badRequest(c, "No disease name provided.")
	}
	info, err := s.deps.Advisor.DiseaseInfo(c.Request().Context(), name)
	if err != nil {
		return s.HandleError(c, err, "failed to fetch disease information")
	}
	return c.JSON(http.StatusOK, map[string]string{"disease_info": info})
}

func (s *Server) healthyAdvice(c echo.Context) error {
	advice, err := s.deps.Advisor.HealthyAdvice(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "failed to fetch healthy crop advice")
	}
	return c.JSON(http.StatusOK, map[string]string{"advice": advice})
}

func (s *Server) recommendedStoreType(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("disease_name"))
	if name == "" {
		return s.badRequest(c, "No disease name provided.")
	}
	storeType, err := s.deps.Advisor.RecommendedStoreType(c.Request().Context(), name)
	if err != nil {
		return s.HandleError(c, err, "failed to recommend a store type")
	}
	return c.JSON(http.StatusOK, map[string]string{"store_type": storeType})
}

// chat answers a typed prompt (JSON) or a spoken one (multipart "audio").
// Spoken questions are answered aloud unless read_aloud is false.
func (s *Server) chat(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		req       ChatRequest
		audio     []byte
		readAloud bool
	)
	if isMultipart(c) {
		data, ok, err := readUpload(c, "audio")
		if err != nil {
			return s.HandleError(c, err, "failed to read audio upload")
		}
		req.Prompt = c.FormValue("prompt")
		req.Language = c.FormValue("language")
		readAloud = ok
		if v := strings.TrimSpace(c.FormValue("read_aloud")); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return s.badRequest(c, "read_aloud must be true or false")
			}
			readAloud = parsed
		}
		if ok {
			audio = data
		}
	} else {
		if err := c.Bind(&req); err != nil {
			return s.badRequest(c, "Invalid JSON body.")
		}
		if req.ReadAloud != nil {
			readAloud = *req.ReadAloud
		}
	}

	if audio == nil && strings.TrimSpace(req.Prompt) == "" {
		return s.badRequest(c, "No prompt provided.")
	}

	lang, err := s.deps.Speech.NormalizeLanguage(req.Language)
	if err != nil {
		return s.HandleError(c, err, "invalid language code")
	}

	var resp ChatResponse
	prompt := req.Prompt
	if audio != nil {
		transcript, err := s.deps.Speech.Transcribe(ctx, audio, lang)
		if err != nil {
			return s.HandleError(c, err, "failed to transcribe audio")
		}
		resp.UserTranscription = transcript
		prompt = transcript
	}

	answer, err := s.deps.Advisor.Chat(ctx, prompt)
	if err != nil {
		return s.HandleError(c, err, "failed to generate a response")
	}
	resp.Response = answer

	if readAloud {
		spoken, err := s.deps.Speech.Synthesize(ctx, answer, lang)
		if err != nil {
			GetLogger().Warn("speech synthesis failed, answering with text only",
				logger.String("language", lang),
				logger.String("category", string(errors.CategoryOf(err))),
				logger.Error(err))
		} else {
			resp.AudioResponse = spoken
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// readUpload returns the contents of the multipart file field. ok is false
// when the field is absent or carries an empty filename.
func readUpload(c echo.Context, field string) (data []byte, ok bool, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, false, nil
		}
		return nil, false, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", field).
			Build()
	}
	if fh.Filename == "" {
		return nil, false, nil
	}
	data, err = readFileHeader(fh)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New(err).Component("api").Category(errors.CategoryFileIO).Build()
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New(err).Component("api").Category(errors.CategoryFileIO).Build()
	}
	return data, nil
}
