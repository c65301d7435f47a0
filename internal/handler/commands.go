package handler

import (
	"image"
	"net/http"

	"faceemotion/internal/config"
	"faceemotion/internal/dto"
	"faceemotion/internal/emotion"
	"faceemotion/internal/logger"
	"faceemotion/internal/middleware"
	"faceemotion/internal/service"
)

// Command is one entry of the dispatch table.
type Command struct {
	Name        string
	Description string
	Run         service.RunFunc
}

// Commands returns the dispatch table in a fixed order.
func Commands() []Command {
	return []Command{
		{
			Name: "detect",
			Description: "Detect faces in given image and return their bounding boxes " +
				"sorted largest to smallest",
			Run: func(p *service.Pipeline, img image.Image) (dto.Result, error) {
				return p.Detect(img)
			},
		},
		{
			Name: "classify",
			Description: "Classify given face image returning probabilities and most likely class.\n" +
				"Probabilities correspond to: " + emotion.Describe(),
			Run: func(p *service.Pipeline, img image.Image) (dto.Result, error) {
				return p.Classify(img)
			},
		},
		{
			Name: "detect_and_classify",
			Description: "Detect faces in given image and return their bounding boxes sorted " +
				"largest to smallest along with probabilities of each face's emotion " +
				"classification and most likely class.\nProbabilities correspond to: " + emotion.Describe(),
			Run: func(p *service.Pipeline, img image.Image) (dto.Result, error) {
				return p.DetectAndClassify(img)
			},
		},
	}
}

// LookupCommand finds a command by name.
func LookupCommand(name string) (Command, bool) {
	for _, c := range Commands() {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// CommandHandler decodes the request image and runs cmd on it.
func CommandHandler(cmd Command, manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		img, err := imageFromRequest(w, r, cfg.MaxUploadBytes())
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		result, err := manager.Process(middleware.GetRequestID(r.Context()), cmd.Name, img, cmd.Run)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result, logger)
	}
}

// AnnotateHandler returns the request image with faces and emotions drawn on it.
func AnnotateHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		img, err := imageFromRequest(w, r, cfg.MaxUploadBytes())
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		out, err := manager.Annotate(middleware.GetRequestID(r.Context()), img)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(out); err != nil {
			logger.Error("Error writing annotated image: %v", err)
		}
	}
}

type commandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Route       string `json:"route"`
}

type metaResponse struct {
	Commands []commandInfo `json:"commands"`
	Labels   []string      `json:"labels"`
	Journal  bool          `json:"journal"`
}

// MetaHandler lists the available commands and the emotion labels.
func MetaHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		meta := metaResponse{Labels: emotion.Labels[:], Journal: manager.GetJournal().Enabled()}
		for _, c := range Commands() {
			meta.Commands = append(meta.Commands, commandInfo{Name: c.Name, Description: c.Description, Route: "/" + c.Name})
		}
		meta.Commands = append(meta.Commands, commandInfo{
			Name:        "annotate",
			Description: "Detect and classify faces and return the image with the results drawn on it as JPEG",
			Route:       "/annotate",
		})

		writeJSON(w, http.StatusOK, meta, logger)
	}
}

// HealthHandler reports that the models are loaded and the server is up.
func HealthHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}
