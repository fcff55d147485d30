package network

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tiltball/room"
)

func NewRouter(rooms *room.Manager, opts Options, log *zap.Logger) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	}).Methods("GET")
	r.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rooms.ListRooms(), log)
	}).Methods("GET")
	r.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		code := rooms.CreateRoom()
		log.Info("room created", zap.String("room", code))
		writeJSON(w, http.StatusCreated, room.RoomInfo{Code: code}, log)
	}).Methods("POST")
	r.Handle("/ws/{code}", NewHandler(rooms, opts, log.Named("ws")))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response", zap.Error(err))
	}
}
