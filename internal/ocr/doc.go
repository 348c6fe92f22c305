// Package ocr defines the contract with the on-device text-recognition
// collaborator. The agent only issues requests and interprets typed
// errors; recognition itself happens outside this core.
package ocr
