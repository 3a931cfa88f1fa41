package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contact-api/pkg/model"
)

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "the base URL of the contact API")
	flag.Parse()

	token := signupAndLogin(*baseURL)

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{100, 500, 1000, 5000}
	jsonBody, _ := json.Marshal(model.ContactRequest{
		FirstName: "Marcus",
		LastName:  "Antonius",
		Phones:    []model.ContactPhone{{PhoneType: "WORK", PhoneValue: "+39 999 777 555"}},
	})
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)
		ids := make([]string, 0, loops)
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				id, d := sendPostRequest(*baseURL, token, bytes.NewReader(jsonBody))
				ids = append(ids, id)
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(id string) int64 {
				return sendPutGetDeleteRequest(*baseURL, token, id, http.MethodPut, bytes.NewReader(jsonBody))
			}
			callInLoop(ids, f)
		}
		{
			// GET requests
			f := func(id string) int64 {
				return sendPutGetDeleteRequest(*baseURL, token, id, http.MethodGet, nil)
			}
			callInLoop(ids, f)
		}
		{
			// DELETE requests
			f := func(id string) int64 {
				return sendPutGetDeleteRequest(*baseURL, token, id, http.MethodDelete, nil)
			}
			callInLoop(ids, f)
		}
		fmt.Println()
	}
}

// signupAndLogin creates a throwaway account and returns its bearer token.
func signupAndLogin(baseURL string) string {
	username := fmt.Sprintf("bench-%s@example.com", uuid.NewString())
	password := uuid.NewString()

	signup, _ := json.Marshal(model.SignupRequest{Email: username, Password: password})
	sendRequest(http.MethodPost, baseURL+"/auth/signup", "", bytes.NewReader(signup), http.StatusCreated)

	login, _ := json.Marshal(model.LoginRequest{Username: username, Password: password})
	resBody, _ := sendRequest(http.MethodPost, baseURL+"/auth/login", "", bytes.NewReader(login), http.StatusOK)
	var response model.LoginResponse
	if err := json.Unmarshal(resBody, &response); err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return response.Jwt
}

func callInLoop(ids []string, f func(id string) int64) {
	shuffled := append([]string(nil), ids...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration int64
	for _, id := range shuffled {
		duration += f(id)
	}
	fmt.Printf("%10d", duration/int64(len(ids)*1000))
}

func sendPostRequest(baseURL string, token string, bodyReader io.Reader) (string, int64) {
	resBody, duration := sendRequest(http.MethodPost, baseURL+"/contact", token, bodyReader, http.StatusCreated)
	var contact model.ContactDetail
	err := json.Unmarshal(resBody, &contact)
	if err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return contact.Id, duration
}

func sendPutGetDeleteRequest(baseURL string, token string, id string, method string, bodyReader io.Reader) int64 {
	expected := http.StatusOK
	if method == http.MethodDelete {
		expected = http.StatusNoContent
	}
	_, duration := sendRequest(method, baseURL+"/contact/"+id, token, bodyReader, expected)
	return duration
}

func sendRequest(method string, requestURL string, token string, bodyReader io.Reader, expected int) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	after := time.Now().UnixNano()
	if res.StatusCode != expected {
		panic(fmt.Sprintf("%s %s: unexpected status %s: %s", method, requestURL, res.Status, resBody))
	}
	return resBody, after - before
}
