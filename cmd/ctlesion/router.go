package main

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/interpose/middleware"
	"github.com/justinas/alice"
)

const planePattern = "{plane:(?:axial|sagittal)}"

func router(config *Global) (http.Handler, error) {
	router := mux.NewRouter()
	POST := router.Methods("POST").Subrouter()
	GET := router.Methods("GET", "HEAD").Subrouter()

	h := &handler{Global: config, router: router}

	GET.HandleFunc("/", h.Index).Name("index")
	GET.HandleFunc("/goroutines", h.Goroutines)
	GET.HandleFunc("/version", h.Version)
	GET.HandleFunc("/cases", h.ListCases).Name("cases")
	GET.HandleFunc("/state", h.State).Name("state")
	GET.HandleFunc("/slice/"+planePattern+".png", h.SliceImage).Name("slice")
	GET.HandleFunc("/histogram", h.Histogram)
	GET.HandleFunc("/histogram.png", h.HistogramImage)
	GET.HandleFunc("/mesh", h.Mesh)
	GET.HandleFunc("/mesh.stl", h.MeshSTL)
	GET.HandleFunc("/mask.rle", h.MaskRLE)
	GET.HandleFunc("/chat", h.ChatHistory)
	GET.HandleFunc("/findings/{case}", h.Findings)

	//
	// POST
	//
	POST.Handle("/", http.NotFoundHandler())
	POST.HandleFunc("/case", h.SelectCase)
	POST.HandleFunc("/slice/"+planePattern, h.MoveSlice)
	POST.HandleFunc("/annotation/"+planePattern, h.Annotate)
	POST.HandleFunc("/threshold", h.Threshold)
	POST.HandleFunc("/chat", h.Chat)

	// Static assets
	assetFilesystem, err := fs.Sub(embeddedTemplates, "templates/static")
	if err != nil {
		return nil, err
	}

	GET.PathPrefix(h.Assets()).Handler(
		middleware.MaxAgeHandler(60*60*24*364,
			http.StripPrefix(h.Assets(), http.FileServer(http.FS(assetFilesystem)))))

	standard := alice.New(
		// Log all requests to STDOUT
		middleware.GorillaLog(),
	)

	return standard.Then(router), nil
}
