// Package swagger отдает описание REST API заметок в формате Swagger 2.0
package swagger

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// documentFile основной документ внутри embed/
const documentFile = "embed/keeper.swagger.json"

//go:embed embed/*
var specs embed.FS

// Document возвращает встроенный swagger.json
func Document() ([]byte, error) {
	return specs.ReadFile(documentFile)
}

// Routes добавляет маршруты документации:
//   - GET /swagger.json - основной документ
//   - GET /swagger/specs/{file} - все встроенные документы
func Routes(r *mux.Router, log zerolog.Logger) {
	r.HandleFunc("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		data, err := Document()
		if err != nil {
			log.Error().Err(err).Msg("embedded swagger document is missing")
			http.Error(w, "Swagger JSON not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(data)
	}).Methods(http.MethodGet)

	r.PathPrefix("/swagger/specs/").Handler(
		http.StripPrefix("/swagger/specs", http.FileServer(http.FS(subFS()))),
	).Methods(http.MethodGet)

	log.Debug().Msg("swagger JSON available at /swagger.json")
}

// subFS содержимое embed/ без префикса каталога
func subFS() fs.FS {
	sub, err := fs.Sub(specs, "embed")
	if err != nil {
		// "embed" - корректный путь, fs.Sub не вернет ошибку
		panic(err)
	}
	return sub
}
