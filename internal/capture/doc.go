// Package capture renders targets in a headless browser and reads the
// visible text back out of the screenshots.
//
// Screenshots go through the same Tor proxy as page fetches. OCR shells
// out to the tesseract binary, which must be installed separately; when it
// is missing, OCR is reported as unavailable and visits carry on without it.
package capture
