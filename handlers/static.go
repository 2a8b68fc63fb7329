package handlers

import (
	"net/http"
	"path"
)

// Static serves files from the static directory. Directories and missing
// files are 404; "/" serves index.html.
func (s *Server) Static(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}

	f, err := http.Dir(s.deps.Config.StaticDir).Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
