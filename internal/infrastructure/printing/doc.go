// Package printing turns printing.Document block lists into PDF files.
//
// This package contains:
// - Engine, which draws any block list on a Canvas
// - PDFRenderer interface with two implementations:
//   GofpdfRenderer (native, fixed-coordinate drawing) and
//   ChromedpRenderer (absolute-positioned HTML printed by headless Chrome)
// - PDFStorage interface and FileSystemStorage for writing rendered files
//
// Example usage:
//
//	renderer, err := NewGofpdfRenderer(&GofpdfConfig{Logger: logger})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := renderer.Render(ctx, &RenderRequest{Document: doc})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Generated PDF: %d bytes\n", len(result.PDFData))
package printing
