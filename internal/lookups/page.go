package lookups

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// uploadPage is a bare form for driving the upload endpoint from a browser.
const uploadPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>EAN lookup</title>
</head>
<body>
<h1>EAN lookup</h1>
<p>Upload a CSV with the columns <code>postalCode</code>, <code>streetNumber</code>
and optionally <code>streetNumberAddition</code>.</p>
<form action="/api/v1/lookups" method="post" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,text/csv" required>
<button type="submit">Look up</button>
</form>
<p>The response contains an <code>id</code>. Download the results from
<code>/api/v1/lookups/{id}/export?format=csv</code> or <code>?format=xlsx</code>.</p>
</body>
</html>
`

// UploadPage handles GET /.
func (h *Handler) UploadPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(uploadPage))
}
